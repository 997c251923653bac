package pets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawpal/petmail/internal/models"
)

type memoryPets struct {
	byEmailID map[string]*models.Pet
	err       error
	lookups   []string
}

func (m *memoryPets) GetByEmailID(_ context.Context, emailID string) (*models.Pet, error) {
	m.lookups = append(m.lookups, emailID)
	if m.err != nil {
		return nil, m.err
	}
	return m.byEmailID[emailID], nil
}

func (m *memoryPets) GetByID(context.Context, string) (*models.Pet, error) {
	return nil, nil
}

func TestFindPetByEmail(t *testing.T) {
	repo := &memoryPets{byEmailID: map[string]*models.Pet{"luna-x7k2": {ID: "pet_1", Name: "Luna"}}}
	lookup := NewPetLookup(repo)

	for _, alias := range []string{"luna-x7k2@pets.example.com", "Luna-X7K2+vet@pets.example.com", "Luna <luna-x7k2@pets.example.com>"} {
		pet, err := lookup.FindPetByEmail(context.Background(), alias)
		require.NoError(t, err, alias)
		require.NotNil(t, pet, alias)
		assert.Equal(t, "pet_1", pet.ID)
	}

	pet, err := lookup.FindPetByEmail(context.Background(), "rex@pets.example.com")
	require.NoError(t, err)
	assert.Nil(t, pet)
}

func TestFindPetByEmail_InvalidAndErrors(t *testing.T) {
	repo := &memoryPets{}
	lookup := NewPetLookup(repo)

	pet, err := lookup.FindPetByEmail(context.Background(), "not-an-address")
	require.NoError(t, err)
	assert.Nil(t, pet)
	assert.Empty(t, repo.lookups)

	repo.err = errors.New("db down")
	_, err = lookup.FindPetByEmail(context.Background(), "luna@pets.example.com")
	assert.Error(t, err)
}
