package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/opentracing/opentracing-go"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/tracing"
)

const identityPrompt = `Read the attached veterinary document and report which animal it is about.
Extract only what is written in the document, never guess:
- microchip: the microchip or transponder number, digits only
- name: the patient's name
- age: the patient's age as written (for example "3 years 2 months")
- breed: the breed
- gender: sex as written (for example "male neutered", "FS")
Use null for anything not present. confidence is 0 to 100.
Email subject for context: %s`

var identitySchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"microchip":  map[string]any{"type": "STRING", "nullable": true},
		"name":       map[string]any{"type": "STRING", "nullable": true},
		"age":        map[string]any{"type": "STRING", "nullable": true},
		"breed":      map[string]any{"type": "STRING", "nullable": true},
		"gender":     map[string]any{"type": "STRING", "nullable": true},
		"confidence": map[string]any{"type": "INTEGER"},
	},
	"required": []string{"confidence"},
}

type petIdentityExtractor struct {
	oracle interfaces.Oracle
}

func NewPetIdentityExtractor(oracle interfaces.Oracle) interfaces.PetIdentityExtractor {
	return &petIdentityExtractor{oracle: oracle}
}

func (e *petIdentityExtractor) ExtractPetInfo(ctx context.Context, attachment *dto.ParsedAttachment, subject string) (*dto.ExtractedPetInfo, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "petIdentityExtractor.ExtractPetInfo")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	var info dto.ExtractedPetInfo
	err := e.oracle.GenerateJSON(ctx, fmt.Sprintf(identityPrompt, subject),
		&interfaces.InlineDocument{MimeType: attachment.MimeType, Data: attachment.Content},
		identitySchema, &info)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	info.Microchip = blankToNil(info.Microchip)
	info.Name = blankToNil(info.Name)
	info.Age = blankToNil(info.Age)
	info.Breed = blankToNil(info.Breed)
	info.Gender = blankToNil(info.Gender)
	info.Confidence = clampConfidence(info.Confidence)
	tracing.LogObjectAsJson(span, "extracted", info)

	return &info, nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") || strings.EqualFold(v, "unknown") || strings.EqualFold(v, "n/a") {
		return nil
	}
	return &v
}
