package model

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "jean@acme.fr", NormalizeEmail("  Jean@ACME.fr \n"))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestContact_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Contact{CompanyName: "Acme"}.Validate())
	require.NoError(t, Contact{Website: "https://acme.fr"}.Validate())

	err := Contact{Email: "a@b.fr"}.Validate()
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidContact))

	err = Contact{CompanyName: "Acme", Email: "nope"}.Validate()
	assert.True(t, eris.Is(err, ErrInvalidContact))
}

func TestDepartmentFromPostal(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "69", DepartmentFromPostal("69003"))
	assert.Equal(t, "", DepartmentFromPostal("6"))
	assert.Equal(t, "13", Contact{PostalCode: " 13001"}.DepartmentCode())
}

func TestICP_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, ICP{Niche: "nettoyage de bureaux"}.Validate())

	err := ICP{Niche: "  "}.Validate()
	assert.True(t, eris.Is(err, ErrInvalidICP))

	err = ICP{Niche: "x", RevenueMin: 5e6, RevenueMax: 1e6}.Validate()
	assert.True(t, eris.Is(err, ErrInvalidICP))
}

func TestBracketFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, SizeMicro, BracketFor(0))
	assert.Equal(t, SizeMicro, BracketFor(9))
	assert.Equal(t, SizeSmall, BracketFor(10))
	assert.Equal(t, SizeMid, BracketFor(249))
	assert.Equal(t, SizeLarge, BracketFor(250))

	assert.True(t, SizeSmall.Adjacent(SizeMid))
	assert.False(t, SizeMicro.Adjacent(SizeMid))
	assert.False(t, SizeMicro.Adjacent("huge"))
}

func TestEnrichedRecord_Accessors(t *testing.T) {
	t.Parallel()

	r := NewEnrichedRecord(Contact{Email: " Boss@Acme.FR", Sector: "btp"})
	assert.Equal(t, "boss@acme.fr", r.PrimaryEmail())
	assert.Equal(t, -1, r.Employees())
	assert.Nil(t, r.DecisionMaker())
	assert.Equal(t, "btp", r.Sector())

	n := 12
	r.Financial.Employees = &n
	r.DecisionMakers = []DecisionMaker{{Name: ""}, {Name: "Marie Dupont"}}
	assert.Equal(t, 12, r.Employees())
	require.NotNil(t, r.DecisionMaker())
	assert.Equal(t, "Marie Dupont", r.DecisionMaker().Name)
}
