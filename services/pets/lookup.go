package pets

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/internal/utils"
)

type petLookup struct {
	pets interfaces.PetRepository
}

func NewPetLookup(pets interfaces.PetRepository) interfaces.PetLookup {
	return &petLookup{pets: pets}
}

// FindPetByEmail resolves "luna-x7k2+vet@pets.example.com" to the pet whose
// alias is "luna-x7k2". Nil without error when no pet owns the alias.
func (p *petLookup) FindPetByEmail(ctx context.Context, aliasAddress string) (*models.Pet, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "petLookup.FindPetByEmail")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("alias", aliasAddress)

	emailID := utils.ExtractLocalPart(aliasAddress)
	if emailID == "" {
		return nil, nil
	}

	pet, err := p.pets.GetByEmailID(ctx, emailID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to look up pet")
	}
	if pet != nil {
		tracing.TagPet(span, pet.ID)
	}
	return pet, nil
}
