package service

import (
	"fmt"
	"time"

	"github.com/punchamoorthee/coinwallet/internal/domain"
	"github.com/punchamoorthee/coinwallet/internal/models"
)

// BuildReceipt derives the receipt of a completed transfer. Missing party or
// timestamp data is reported as domain.ErrMalformedRecord, never defaulted.
func BuildReceipt(rec *models.TransferRecord) (domain.TransferReceipt, error) {
	if rec == nil {
		return domain.TransferReceipt{}, fmt.Errorf("%w: no transfer in response", domain.ErrMalformedRecord)
	}
	from, err := party("from", rec.From)
	if err != nil {
		return domain.TransferReceipt{}, err
	}
	to, err := party("to", rec.To)
	if err != nil {
		return domain.TransferReceipt{}, err
	}
	if rec.Timestamp <= 0 {
		return domain.TransferReceipt{}, fmt.Errorf("%w: missing timestamp", domain.ErrMalformedRecord)
	}

	return domain.TransferReceipt{
		From:        from,
		To:          to,
		Amount:      rec.Amount.Decimal,
		Description: rec.Description,
		Timestamp:   time.Unix(rec.Timestamp, 0).UTC(),
	}, nil
}

func party(side string, u *models.User) (domain.Party, error) {
	if u == nil || u.Username == "" || u.Name == "" {
		return domain.Party{}, fmt.Errorf("%w: incomplete %q party", domain.ErrMalformedRecord, side)
	}
	return domain.Party{DisplayName: u.Name, Handle: u.Username}, nil
}
