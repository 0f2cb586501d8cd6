package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/coinwallet/internal/domain"
	"github.com/punchamoorthee/coinwallet/internal/models"
)

func TestBuildReceipt(t *testing.T) {
	rec := &models.TransferRecord{
		From:        &models.User{Name: "Ana", Username: "ana"},
		To:          &models.User{Name: "Beto", Username: "beto"},
		Amount:      models.NewAmount(decimal.NewFromInt(50)),
		Description: "lunch",
		Timestamp:   1700000000,
	}

	r, err := BuildReceipt(rec)
	require.NoError(t, err)
	assert.Equal(t, domain.Party{DisplayName: "Ana", Handle: "ana"}, r.From)
	assert.Equal(t, domain.Party{DisplayName: "Beto", Handle: "beto"}, r.To)
	assert.Equal(t, "50", r.Amount.String())
	assert.Equal(t, "lunch", r.Description)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), r.Timestamp)
}

func TestBuildReceipt_EmptyDescriptionIsWellFormed(t *testing.T) {
	rec := &models.TransferRecord{
		From:      &models.User{Name: "Ana", Username: "ana"},
		To:        &models.User{Name: "Beto", Username: "beto"},
		Timestamp: 1,
	}
	_, err := BuildReceipt(rec)
	assert.NoError(t, err)
}

func TestBuildReceipt_Malformed(t *testing.T) {
	ana := &models.User{Name: "Ana", Username: "ana"}
	tests := map[string]*models.TransferRecord{
		"nil record":      nil,
		"missing from":    {To: ana, Timestamp: 1},
		"missing to":      {From: ana, Timestamp: 1},
		"nameless party":  {From: ana, To: &models.User{Username: "beto"}, Timestamp: 1},
		"missing handle":  {From: &models.User{Name: "Ana"}, To: ana, Timestamp: 1},
		"missing instant": {From: ana, To: ana},
	}
	for name, rec := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := BuildReceipt(rec)
			assert.ErrorIs(t, err, domain.ErrMalformedRecord)
		})
	}
}
