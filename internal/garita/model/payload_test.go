package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/garita/internal/garita/model"
)

func ts(h, m int) *time.Time {
	t := time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
	return &t
}

func TestPayload_ClosedPredicates(t *testing.T) {
	tests := []struct {
		name    string
		payload model.Payload
		closed  bool
	}{
		{"supplier without exit", model.SupplierVisit{Company: "Ferreyros", Stay: model.Stay{EntryAt: ts(8, 0)}}, false},
		{"supplier with exit", model.SupplierVisit{Company: "Ferreyros", Stay: model.Stay{EntryAt: ts(8, 0), ExitAt: ts(9, 0)}}, true},
		{"company vehicle out", model.CompanyVehicle{Plate: "ABC-123", Driver: "Quispe", Outing: model.Outing{DepartedAt: ts(7, 0)}}, false},
		{"company vehicle back", model.CompanyVehicle{Plate: "ABC-123", Driver: "Quispe", Outing: model.Outing{DepartedAt: ts(7, 0), ReturnAt: ts(18, 0)}}, true},
		{"leave without return", model.PersonalLeave{Reason: "medical", AuthorizedBy: "HR", Outing: model.Outing{DepartedAt: ts(10, 0)}}, false},
		{"official permit is single step", model.OfficialExitPermit{ExitAt: ts(12, 0), AuthorizedBy: "Ops", Reason: "bank"}, true},
		{"handover is single step", model.HandoverReport{HandedAt: ts(12, 0), ReceivedBy: "Guard 2", Items: []model.DeclaredItem{{Description: "radio"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.closed, tt.payload.Closed())
		})
	}
}

func TestPayload_OutingWindowMirrorsDirection(t *testing.T) {
	p := model.CompanyVehicle{Plate: "ABC-123", Driver: "Quispe", Outing: model.Outing{DepartedAt: ts(7, 0), ReturnAt: ts(18, 0)}}

	entry, exit := p.Window()
	require.NotNil(t, entry)
	require.NotNil(t, exit)
	assert.Equal(t, 18, entry.Hour(), "return is the entry side of an outing")
	assert.Equal(t, 7, exit.Hour())
}

func TestPayload_Validate(t *testing.T) {
	tests := []struct {
		name    string
		payload model.Payload
		wantErr bool
	}{
		{"supplier ok", model.SupplierVisit{Company: "Komatsu", Stay: model.Stay{EntryAt: ts(8, 0)}}, false},
		{"supplier missing company", model.SupplierVisit{Stay: model.Stay{EntryAt: ts(8, 0)}}, true},
		{"supplier missing entry", model.SupplierVisit{Company: "Komatsu"}, true},
		{"supplier exit before entry", model.SupplierVisit{Company: "Komatsu", Stay: model.Stay{EntryAt: ts(9, 0), ExitAt: ts(8, 0)}}, true},
		{"asset declaration without items", model.AssetDeclaration{Stay: model.Stay{EntryAt: ts(8, 0)}}, true},
		{"asset declaration blank item", model.AssetDeclaration{Stay: model.Stay{EntryAt: ts(8, 0)}, Items: []model.DeclaredItem{{}}}, true},
		{"vehicle odometer regression", model.CompanyVehicle{Plate: "X", Driver: "Y", OdometerOut: 100, OdometerIn: 90, Outing: model.Outing{DepartedAt: ts(7, 0)}}, true},
		{"permit missing authorizer", model.OfficialExitPermit{ExitAt: ts(12, 0), Reason: "bank"}, true},
		{"dining hall ok", model.DiningHallVisit{Stay: model.Stay{EntryAt: ts(12, 0)}, Meal: "lunch"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, model.ErrInvalidPayload)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDecodePayload_DispatchesByKind(t *testing.T) {
	raw := []byte(`{"company":"Ferreyros","entry_at":"2026-03-02T08:00:00Z"}`)

	p, err := model.DecodePayload(model.KindSupplierVisit, raw)
	require.NoError(t, err)

	sv, ok := p.(model.SupplierVisit)
	require.True(t, ok, "expected SupplierVisit, got %T", p)
	assert.Equal(t, "Ferreyros", sv.Company)
	assert.False(t, sv.Closed())
}

func TestDecodePayload_UnknownKind(t *testing.T) {
	_, err := model.DecodePayload("Cafeteria", []byte(`{}`))
	require.ErrorIs(t, err, model.ErrInvalidPayload)
}

func TestParseRecordKind_CaseInsensitive(t *testing.T) {
	k, err := model.ParseRecordKind("proveedor")
	require.NoError(t, err)
	assert.Equal(t, model.KindSupplierVisit, k)
}
