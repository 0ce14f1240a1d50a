package quizboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Submission is the client payload of POST /api/submit-quiz. Score and
// CorrectAnswers are pointers so that an absent field can be told apart
// from zero.
type Submission struct {
	PlayerName     string          `json:"playerName" validate:"required,max=20"`
	Score          *int            `json:"score" validate:"required"`
	CorrectAnswers *int            `json:"correctAnswers" validate:"required"`
	TotalQuestions int             `json:"totalQuestions"`
	TimeTaken      int             `json:"timeTaken"`
	Answers        json.RawMessage `json:"answers,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalize trims surrounding whitespace from the player name.
func (s Submission) Normalize() Submission {
	s.PlayerName = strings.TrimSpace(s.PlayerName)
	return s
}

// Validate returns a *ValidationError describing the first violated rule.
func (s Submission) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validating submission: %w", err)
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: fe.Field(), Message: "is required"}
	case "max":
		return &ValidationError{Field: fe.Field(), Message: fmt.Sprintf("must be at most %s characters", fe.Param())}
	default:
		return &ValidationError{Field: fe.Field(), Message: "is invalid"}
	}
}

// newResult converts a validated submission for insertion.
func (s Submission) newResult(source string) NewResult {
	return NewResult{
		PlayerName:     s.PlayerName,
		Score:          *s.Score,
		CorrectAnswers: *s.CorrectAnswers,
		TotalQuestions: s.TotalQuestions,
		TimeTaken:      s.TimeTaken,
		Answers:        s.Answers,
		SourceAddress:  source,
	}
}
