package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveCommandValidate(t *testing.T) {
	valid := ReserveCommand{
		TenantID:      1,
		SlotID:        10,
		UserID:        42,
		HolderName:    "Chen Wei",
		HolderContact: "chen@example.com",
		StartsOn:      "2026-09-01",
		EndsOn:        "2027-09-01",
		AmountCents:   50000,
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name    string
		mutate  func(*ReserveCommand)
		field   string
	}{
		{"missing tenant", func(c *ReserveCommand) { c.TenantID = 0 }, "tenant_id"},
		{"missing slot", func(c *ReserveCommand) { c.SlotID = 0 }, "slot_id"},
		{"blank holder name", func(c *ReserveCommand) { c.HolderName = "  " }, "holder_name"},
		{"blank contact", func(c *ReserveCommand) { c.HolderContact = "" }, "holder_contact"},
		{"malformed starts_on", func(c *ReserveCommand) { c.StartsOn = "01/09/2026" }, "starts_on"},
		{"malformed ends_on", func(c *ReserveCommand) { c.EndsOn = "tomorrow" }, "ends_on"},
		{"period inverted", func(c *ReserveCommand) { c.EndsOn = "2026-08-01" }, "ends_on"},
		{"period empty", func(c *ReserveCommand) { c.EndsOn = c.StartsOn }, "ends_on"},
		{"zero amount", func(c *ReserveCommand) { c.AmountCents = 0 }, "amount_cents"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := valid
			tc.mutate(&cmd)
			err := cmd.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestConfirmCommandValidate(t *testing.T) {
	valid := ConfirmCommand{TenantID: 1, ReservationID: 55, PaymentModeID: 2, PaymentRef: "TXN-778"}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*ConfirmCommand)
		field  string
	}{
		{"missing tenant", func(c *ConfirmCommand) { c.TenantID = 0 }, "tenant_id"},
		{"missing reservation", func(c *ConfirmCommand) { c.ReservationID = 0 }, "reservation_id"},
		{"missing payment mode", func(c *ConfirmCommand) { c.PaymentModeID = 0 }, "payment_mode_id"},
		{"blank payment ref", func(c *ConfirmCommand) { c.PaymentRef = " " }, "payment_ref"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := valid
			tc.mutate(&cmd)
			err := cmd.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestCancelCommandValidate(t *testing.T) {
	valid := CancelCommand{TenantID: 1, ReservationID: 55, Reason: "holder request", Actor: "user:42"}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*CancelCommand)
		field  string
	}{
		{"missing tenant", func(c *CancelCommand) { c.TenantID = 0 }, "tenant_id"},
		{"missing reservation", func(c *CancelCommand) { c.ReservationID = 0 }, "reservation_id"},
		{"blank reason", func(c *CancelCommand) { c.Reason = "" }, "reason"},
		{"blank actor", func(c *CancelCommand) { c.Actor = "" }, "actor"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := valid
			tc.mutate(&cmd)
			err := cmd.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}
