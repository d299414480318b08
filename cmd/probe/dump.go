package main

import (
	"fmt"
	"io"

	"rpc-feeprobe-go/internal/engine"
)

// dumpRecording 以文本形式逐行输出录制文件
func dumpRecording(w io.Writer, path string) error {
	entries, err := engine.ReadRecording(path)
	for _, e := range entries {
		if _, werr := fmt.Fprintf(w, "#%d %s\n", e.Seq, e.String()); werr != nil {
			return werr
		}
	}
	return err
}
