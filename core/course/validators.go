package course

import (
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/aggregate"
)

var (
	// payload errors
	errBodyURL        = errors.New("must be a valid http(s) URL")
	errPageCount      = errors.New("must be a positive integer number of pages")
	errDuration       = errors.New("must be a positive integer number of seconds")
	errQuestionCount  = errors.New("must be a positive integer number of questions")
	errLanguagesKey   = errors.New("must contain the 'languages' key")
	errLanguagesValue = errors.New("'languages' must be a list of strings")
)

// ValidatePayload checks the body and metadata of a content against the rules of its kind.
// Unknown kinds are not checked.
func ValidatePayload(kind string, metadata json.RawMessage, body string) error {
	fieldErr := func(field string, err error) error {
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}

	switch kind {
	case aggregate.KindPDF, aggregate.KindVideo, aggregate.KindCodeExercise:
		if !isHTTPURL(body) {
			return fieldErr("body", errBodyURL)
		}
	}

	switch kind {
	case aggregate.KindPDF:
		if !isPositiveInt(metadata, true) {
			return fieldErr("metadata", errPageCount)
		}
	case aggregate.KindVideo:
		if !isPositiveInt(metadata, false) {
			return fieldErr("metadata", errDuration)
		}
	case aggregate.KindMultipleChoiceQuiz:
		if !isPositiveInt(metadata, false) {
			return fieldErr("metadata", errQuestionCount)
		}
	case aggregate.KindCodeExercise:
		var meta map[string]json.RawMessage
		if err := json.Unmarshal(metadata, &meta); err != nil || meta == nil {
			return fieldErr("metadata", errLanguagesKey)
		}
		rawLangs, ok := meta["languages"]
		if !ok {
			return fieldErr("metadata", errLanguagesKey)
		}
		var langs []string
		if err := json.Unmarshal(rawLangs, &langs); err != nil || langs == nil {
			return fieldErr("metadata", errLanguagesValue)
		}
	}
	return nil
}

func isHTTPURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// isPositiveInt reports whether raw is a JSON integer > 0, or a string holding one when allowString is set.
func isPositiveInt(raw json.RawMessage, allowString bool) bool {
	if len(raw) == 0 {
		return false
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n > 0
	}
	if !allowString {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return err == nil && n > 0
}
