package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/pawpal/petmail/config"
	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/internal/tracing"
)

type petIdentityValidator struct {
	cfg       *config.ValidationConfig
	extractor interfaces.PetIdentityExtractor
	log       logger.Logger
	now       func() time.Time
}

func NewPetIdentityValidator(cfg *config.ValidationConfig, extractor interfaces.PetIdentityExtractor, log logger.Logger) interfaces.PetIdentityValidator {
	return &petIdentityValidator{
		cfg:       cfg,
		extractor: extractor,
		log:       log,
		now:       time.Now,
	}
}

// Validate decides whether a document is about pet. A microchip that can be
// compared settles the question; otherwise a quorum of weak attribute
// matches is required.
func (v *petIdentityValidator) Validate(ctx context.Context, pet *models.Pet, attachment *dto.ParsedAttachment, subject string) *dto.PetValidationResult {
	span, ctx := opentracing.StartSpanFromContext(ctx, "petIdentityValidator.Validate")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagPet(span, pet.ID)

	info, err := v.extractor.ExtractPetInfo(ctx, attachment, subject)
	if err != nil {
		tracing.TraceErr(span, err)
		v.log.Warnf("pet identity extraction failed for %s: %v", attachment.Filename, err)
		return &dto.PetValidationResult{
			IsValid:      false,
			Method:       enum.ValidationNone,
			MatchDetails: []dto.MatchDetail{},
			SkipReason:   enum.SkipValidationError,
			Message:      "could not read pet details from the document",
		}
	}

	result := v.evaluate(pet, info)
	span.LogKV("valid", result.IsValid, "method", result.Method, "matches", result.MatchCount)
	return result
}

func (v *petIdentityValidator) evaluate(pet *models.Pet, info *dto.ExtractedPetInfo) *dto.PetValidationResult {
	result := &dto.PetValidationResult{
		Method:        enum.ValidationNone,
		ExtractedInfo: info,
		MatchDetails:  []dto.MatchDetail{},
	}

	if !info.HasAny() {
		result.SkipReason = enum.SkipNoPetInfo
		result.Message = "no pet details found in the document"
		return result
	}

	if info.Microchip != nil && pet.MicrochipNumber != "" {
		extracted := NormalizeMicrochip(*info.Microchip)
		expected := NormalizeMicrochip(pet.MicrochipNumber)
		matched := extracted == expected
		result.Method = enum.ValidationMicrochip
		result.MatchDetails = append(result.MatchDetails, dto.MatchDetail{
			Field:     "microchip",
			Extracted: *info.Microchip,
			Expected:  pet.MicrochipNumber,
			Matched:   matched,
		})
		if matched {
			result.IsValid = true
			result.MatchCount = 1
			return result
		}
		result.SkipReason = enum.SkipMicrochipMismatch
		result.Message = fmt.Sprintf("microchip %s does not match %s", *info.Microchip, pet.Name)
		return result
	}

	result.Method = enum.ValidationAttributes
	if info.Name != nil && pet.Name != "" {
		ratio := SimilarityRatio(*info.Name, pet.Name)
		result.MatchDetails = append(result.MatchDetails, dto.MatchDetail{
			Field: "name", Extracted: *info.Name, Expected: pet.Name,
			Matched: MeetsThreshold(ratio, v.cfg.NameSimilarityThreshold), Score: ratio,
		})
	}
	if info.Age != nil && pet.DateOfBirth != nil {
		if years, ok := ParseAgeYears(*info.Age); ok {
			actual := AgeFromDateOfBirth(*pet.DateOfBirth, v.now())
			result.MatchDetails = append(result.MatchDetails, dto.MatchDetail{
				Field: "age", Extracted: *info.Age, Expected: fmt.Sprintf("%.1f years", actual),
				Matched: AgeMatches(years, actual, v.cfg.AgeToleranceYears), Score: years,
			})
		}
	}
	if info.Breed != nil && pet.Breed != "" {
		ratio := SimilarityRatio(*info.Breed, pet.Breed)
		result.MatchDetails = append(result.MatchDetails, dto.MatchDetail{
			Field: "breed", Extracted: *info.Breed, Expected: pet.Breed,
			Matched: MeetsThreshold(ratio, v.cfg.BreedSimilarityThreshold), Score: ratio,
		})
	}
	if info.Gender != nil && pet.Sex != "" {
		extracted, expected := NormalizeGender(*info.Gender), NormalizeGender(pet.Sex)
		if extracted != "" && expected != "" {
			result.MatchDetails = append(result.MatchDetails, dto.MatchDetail{
				Field: "gender", Extracted: *info.Gender, Expected: pet.Sex,
				Matched: extracted == expected,
			})
		}
	}

	for _, d := range result.MatchDetails {
		if d.Matched {
			result.MatchCount++
		}
	}

	if result.MatchCount >= v.cfg.MinAttributeMatches {
		result.IsValid = true
		return result
	}
	result.SkipReason = enum.SkipAttributesMismatch
	result.Message = fmt.Sprintf("only %d of %d compared details match %s, %d required",
		result.MatchCount, len(result.MatchDetails), pet.Name, v.cfg.MinAttributeMatches)
	return result
}
