package engine

import (
	"fmt"
	"strings"

	"rpc-feeprobe-go/internal/evmrpc"
	"rpc-feeprobe-go/internal/models"
)

// OutcomeKind 探测结果分类
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeEmptyResult
	OutcomeZeroBaseFee
	OutcomeProviderError
	OutcomeInconsistent
	OutcomeCallError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmptyResult:
		return "empty_result"
	case OutcomeZeroBaseFee:
		return "zero_base_fee"
	case OutcomeProviderError:
		return "provider_error"
	case OutcomeInconsistent:
		return "inconsistent_across_sources"
	case OutcomeCallError:
		return "underlying_call_error"
	default:
		return "unknown"
	}
}

const (
	reasonNoFeeHistory = "No fee history returned."
	reasonNoBaseFee    = "No baseFeePerGas returned."
)

// Outcome is the verdict for one probe. Detail carries the text specific to
// the failure (error string, fee list, empty-result reason).
type Outcome struct {
	Kind   OutcomeKind
	Detail string
}

func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

func (o Outcome) Severity() models.Severity {
	if o.OK() {
		return models.SeverityInfo
	}
	return models.SeverityError
}

// Reason 人类可读的失败原因，成功时为空
func (o Outcome) Reason() string {
	switch o.Kind {
	case OutcomeSuccess:
		return ""
	case OutcomeEmptyResult:
		return o.Detail
	case OutcomeZeroBaseFee:
		return "baseFeePerGas is 0. baseFeePerGas: " + o.Detail
	case OutcomeProviderError:
		return "Consistent result / Err: " + o.Detail
	case OutcomeInconsistent:
		return "Inconsistent result"
	case OutcomeCallError:
		return "Err: " + o.Detail
	default:
		return o.Detail
	}
}

// Message 渲染写入 LogStore 的文本
func (o Outcome) Message(endpoint string) string {
	if o.OK() {
		return "✅, " + endpoint
	}
	return fmt.Sprintf("🛑, %s, %s", endpoint, o.Reason())
}

// ValidationMode selects how strictly a consistent response is inspected.
type ValidationMode int

const (
	// ValidationStrict inspects the payload: null, empty and zero base fees fail.
	ValidationStrict ValidationMode = iota
	// ValidationLenient only fails on call errors and provider errors.
	ValidationLenient
)

func (m ValidationMode) String() string {
	if m == ValidationLenient {
		return "lenient"
	}
	return "strict"
}

// ParseValidationMode 解析 VALIDATION_MODE，空串视为 strict
func ParseValidationMode(s string) (ValidationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return ValidationStrict, nil
	case "lenient":
		return ValidationLenient, nil
	default:
		return ValidationStrict, fmt.Errorf("unknown validation mode %q", s)
	}
}

// Classify is the strict validator.
func Classify(res evmrpc.MultiFeeHistoryResult, callErr error) Outcome {
	return ClassifyWithMode(res, callErr, ValidationStrict)
}

// ClassifyWithMode maps a collaborator response, or the error it returned, to
// exactly one Outcome. It has no side effects.
func ClassifyWithMode(res evmrpc.MultiFeeHistoryResult, callErr error, mode ValidationMode) Outcome {
	if callErr != nil {
		return Outcome{Kind: OutcomeCallError, Detail: callErr.Error()}
	}

	if mode == ValidationLenient {
		if res.IsConsistent() && res.Consistent.Err != nil {
			return Outcome{Kind: OutcomeProviderError, Detail: res.Consistent.Err.Error()}
		}
		return Outcome{Kind: OutcomeSuccess}
	}

	if res.IsInconsistent() {
		// 不论来源列表内容如何（包括为空）
		return Outcome{Kind: OutcomeInconsistent, Detail: summarizeSources(res.Inconsistent)}
	}
	if !res.IsConsistent() {
		// 未打标签的零值视为没有返回任何数据
		return Outcome{Kind: OutcomeEmptyResult, Detail: reasonNoFeeHistory}
	}

	c := res.Consistent
	if c.Err != nil {
		return Outcome{Kind: OutcomeProviderError, Detail: c.Err.Error()}
	}
	if c.Ok == nil {
		return Outcome{Kind: OutcomeEmptyResult, Detail: reasonNoFeeHistory}
	}
	fees := c.Ok.BaseFeePerGas
	if len(fees) == 0 {
		return Outcome{Kind: OutcomeEmptyResult, Detail: reasonNoBaseFee}
	}
	for _, fee := range fees {
		if fee == nil || fee.IsZero() {
			return Outcome{Kind: OutcomeZeroBaseFee, Detail: evmrpc.FormatFees(fees)}
		}
	}
	return Outcome{Kind: OutcomeSuccess}
}

// summarizeSources 仅用于结构化日志，不进入 LogStore 文本
func summarizeSources(results []evmrpc.ProviderResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		switch {
		case r.Result.Err != nil:
			parts = append(parts, fmt.Sprintf("%s=%s", r.Provider, r.Result.Err.Error()))
		case r.Result.Ok == nil:
			parts = append(parts, fmt.Sprintf("%s=null", r.Provider))
		default:
			parts = append(parts, fmt.Sprintf("%s=%s", r.Provider, evmrpc.FormatFees(r.Result.Ok.BaseFeePerGas)))
		}
	}
	return strings.Join(parts, "; ")
}
