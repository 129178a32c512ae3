package evaluator

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

// ErrNoScore is returned when an evaluator reply carries no usable JSON payload.
var ErrNoScore = errors.New("evaluator reply has no score")

var (
	jsonObject = regexp.MustCompile(`(?s)\{.*\}`)
	validate   = validator.New()
	sanitizer  = bluemonday.StrictPolicy()
)

// number accepts 85, 8.5, "85" and "85%".
type number float64

func (n *number) UnmarshalJSON(raw []byte) error {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		*n = number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("score is neither number nor string: %s", raw)
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse score %q: %w", s, err)
	}
	*n = number(f)
	return nil
}

// flag accepts true/false and their string spellings.
type flag bool

func (b *flag) UnmarshalJSON(raw []byte) error {
	var v bool
	if err := json.Unmarshal(raw, &v); err == nil {
		*b = flag(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("flag is neither bool nor string: %s", raw)
	}
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("parse flag %q: %w", s, err)
	}
	*b = flag(v)
	return nil
}

type scoreReply struct {
	Score     *number `json:"score" validate:"required,gte=0"`
	Rationale string  `json:"rationale"`
}

type verificationReply struct {
	VerifiedConsensus *number `json:"verified_consensus" validate:"omitempty,gte=0"`
	Matches           *flag   `json:"matches"`
	Note              string  `json:"note"`
}

type reviewReply struct {
	SuggestedScore *number `json:"suggested_score" validate:"required,gte=0"`
	Critique       string  `json:"critique"`
	AcceptOriginal *flag   `json:"accept_original"`
}

// decodeReply extracts the first {...} block of an LLM reply and validates it into v.
func decodeReply(text string, v any) error {
	match := jsonObject.FindString(text)
	if match == "" {
		return ErrNoScore
	}
	if err := json.Unmarshal([]byte(match), v); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validate reply: %w", errors.Join(ErrNoScore, err))
	}
	return nil
}

// cleanText strips markup an LLM may have put into free text.
func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(sanitizer.Sanitize(s)))
}
