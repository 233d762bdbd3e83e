package sonic

import "github.com/bytedance/sonic"

// Config encodes reports and decodes test configs. Map keys are sorted so
// report output is stable between runs.
var Config = sonic.Config{
	NoQuoteTextMarshaler:    false,
	NoValidateJSONMarshaler: true,
	NoValidateJSONSkip:      true,
	SortMapKeys:             true,
	EscapeHTML:              false,
}.Froze()
