package pipeline

import (
	"regexp"
	"strings"
)

type Outcome string

const (
	OutcomeExercise     Outcome = "exercise"
	OutcomeReading      Outcome = "reading"
	OutcomeOther        Outcome = "other"
	OutcomeUnrecognized Outcome = "unrecognized"
)

var reFinalAnswer = regexp.MustCompile(`(?i)final\s*answer\s*:\s*(exercise|reading|other)`)

// ParseOutcome ищет в ответе модели "Final Answer: <category>" без учёта регистра.
func ParseOutcome(text string) Outcome {
	m := reFinalAnswer.FindStringSubmatch(text)
	if len(m) != 2 {
		return OutcomeUnrecognized
	}
	return Outcome(strings.ToLower(m[1]))
}

// Variant: один из размеров присланного фото.
type Variant struct {
	Width    int
	Height   int
	FileSize int
	FileID   string
}

// PhotoEvent: входящее сообщение с фото.
type PhotoEvent struct {
	ChatID   int64
	SenderID int64
	Variants []Variant
}

// Largest выбирает вариант с максимальной площадью; при равенстве: первый.
func Largest(vs []Variant) (Variant, bool) {
	if len(vs) == 0 {
		return Variant{}, false
	}
	best := vs[0]
	for _, v := range vs[1:] {
		if v.Width*v.Height > best.Width*best.Height {
			best = v
		}
	}
	return best, true
}
