package tools

// Result is the unified return type from tool execution.
// ForLLM always carries content — on failure it holds the error text, so the
// model can read what went wrong and self-correct on its next round.
type Result struct {
	ForLLM  string `json:"for_llm"`            // content fed back to the model
	ForUser string `json:"for_user,omitempty"` // content shown to the user, if any
	IsError bool   `json:"is_error"`           // marks error
	Err     error  `json:"-"`                  // internal error (not serialized)
}

func NewResult(forLLM string) *Result {
	return &Result{ForLLM: forLLM}
}

func ErrorResult(message string) *Result {
	return &Result{ForLLM: message, IsError: true}
}

func (r *Result) WithError(err error) *Result {
	r.Err = err
	return r
}
