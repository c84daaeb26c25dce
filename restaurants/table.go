package restaurants

import (
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/myoutlet-admin/internal/errors"
)

const MaxSeatCount = 100

type Table struct {
	ID        string     `json:"id"`
	TableName string     `json:"table_name"`
	SeatCount int        `json:"seat_count"`
	QRCode    string     `json:"qrcode,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	IsActive  *bool      `json:"is_active,omitempty"`
	StoreID   string     `json:"store_id,omitempty"`
}

// QRValue is what the table QR code encodes: the backend supplied value, or the public table page.
func (t Table) QRValue(publicMenuHost string) string {
	if t.QRCode != "" {
		return t.QRCode
	}
	return fmt.Sprintf("https://%s/table/%s", publicMenuHost, t.ID)
}

// TableInput is the body of table create and update calls.
type TableInput struct {
	TableName string `json:"table_name"`
	SeatCount int    `json:"seat_count"`
}

func (in TableInput) Validate() error {
	if strings.TrimSpace(in.TableName) == "" {
		return errors.Wrapf(errors.ErrValidation, "table name is required")
	}
	if in.SeatCount < 1 || in.SeatCount > MaxSeatCount {
		return errors.Wrapf(errors.ErrValidation, "seat count must be between 1 and %d", MaxSeatCount)
	}
	return nil
}
