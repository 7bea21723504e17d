package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RecordKind names a logbook type. The string values are the ones stored and
// exchanged with the front desk applications.
type RecordKind string

const (
	KindSupplierVisit        RecordKind = "Proveedor"
	KindSupplierVehicle      RecordKind = "VehiculoProveedor"
	KindCompanyVehicle       RecordKind = "VehiculoEmpresa"
	KindPersonalLeave        RecordKind = "PermisoPersonal"
	KindOccasionalVisit      RecordKind = "Ocasional"
	KindLocalStaffShift      RecordKind = "PersonalLocal"
	KindContractorCrew       RecordKind = "Contratista"
	KindAssetDeclaration     RecordKind = "ControlBienes"
	KindDiningHallVisit      RecordKind = "Comedor"
	KindChemicalStorageVisit RecordKind = "AlmacenQuimico"
	KindOfficialExitPermit   RecordKind = "OficialPermiso"
	KindHandoverReport       RecordKind = "InformeEntrega"
)

var recordKinds = []RecordKind{
	KindSupplierVisit,
	KindSupplierVehicle,
	KindCompanyVehicle,
	KindPersonalLeave,
	KindOccasionalVisit,
	KindLocalStaffShift,
	KindContractorCrew,
	KindAssetDeclaration,
	KindDiningHallVisit,
	KindChemicalStorageVisit,
	KindOfficialExitPermit,
	KindHandoverReport,
}

// RecordKinds returns every known kind in a stable order.
func RecordKinds() []RecordKind {
	out := make([]RecordKind, len(recordKinds))
	copy(out, recordKinds)
	return out
}

func ParseRecordKind(s string) (RecordKind, error) {
	s = strings.TrimSpace(s)
	for _, k := range recordKinds {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown record kind %q", ErrInvalidPayload, s)
}

var ErrInvalidPayload = errors.New("invalid payload")

// Payload is implemented by one struct per record kind. Closed is the kind's
// closing-field predicate; Validate is its completeness rule at open time.
type Payload interface {
	Kind() RecordKind
	Window() (entry, exit *time.Time)
	Closed() bool
	Validate() error
}

func missing(field string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidPayload, field)
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// ── Shared windows ───────────────────────────────────────────────────────────

// Stay is the window of a record that opens on arrival and closes on exit.
type Stay struct {
	EntryAt      *time.Time `json:"entry_at,omitempty"`
	ExitAt       *time.Time `json:"exit_at,omitempty"`
	Observations string     `json:"observations,omitempty"`
}

func (s Stay) Window() (*time.Time, *time.Time) { return s.EntryAt, s.ExitAt }

func (s Stay) Closed() bool { return s.ExitAt != nil }

func (s Stay) validate() error {
	if s.EntryAt == nil {
		return missing("entry_at")
	}
	if s.ExitAt != nil && s.ExitAt.Before(*s.EntryAt) {
		return fmt.Errorf("%w: exit_at precedes entry_at", ErrInvalidPayload)
	}
	return nil
}

// Outing is the window of a record that opens on departure and closes when
// the person (or vehicle) comes back.
type Outing struct {
	DepartedAt   *time.Time `json:"departed_at,omitempty"`
	ReturnAt     *time.Time `json:"return_at,omitempty"`
	Observations string     `json:"observations,omitempty"`
}

func (o Outing) Window() (*time.Time, *time.Time) { return o.ReturnAt, o.DepartedAt }

func (o Outing) Closed() bool { return o.ReturnAt != nil }

func (o Outing) validate() error {
	if o.DepartedAt == nil {
		return missing("departed_at")
	}
	if o.ReturnAt != nil && o.ReturnAt.Before(*o.DepartedAt) {
		return fmt.Errorf("%w: return_at precedes departed_at", ErrInvalidPayload)
	}
	return nil
}

// ── Stay-style kinds ─────────────────────────────────────────────────────────

type SupplierVisit struct {
	Stay
	Company string `json:"company"`
	Reason  string `json:"reason,omitempty"`
	Contact string `json:"contact,omitempty"`
}

func (SupplierVisit) Kind() RecordKind { return KindSupplierVisit }

func (p SupplierVisit) Validate() error {
	if blank(p.Company) {
		return missing("company")
	}
	return p.Stay.validate()
}

type SupplierVehicle struct {
	Stay
	Plate   string `json:"plate"`
	Company string `json:"company"`
	Cargo   string `json:"cargo,omitempty"`
}

func (SupplierVehicle) Kind() RecordKind { return KindSupplierVehicle }

func (p SupplierVehicle) Validate() error {
	if blank(p.Plate) {
		return missing("plate")
	}
	if blank(p.Company) {
		return missing("company")
	}
	return p.Stay.validate()
}

type OccasionalVisit struct {
	Stay
	Host    string `json:"host"`
	Purpose string `json:"purpose,omitempty"`
}

func (OccasionalVisit) Kind() RecordKind { return KindOccasionalVisit }

func (p OccasionalVisit) Validate() error {
	if blank(p.Host) {
		return missing("host")
	}
	return p.Stay.validate()
}

type LocalStaffShift struct {
	Stay
	Shift string `json:"shift"`
	Area  string `json:"area,omitempty"`
}

func (LocalStaffShift) Kind() RecordKind { return KindLocalStaffShift }

func (p LocalStaffShift) Validate() error {
	if blank(p.Shift) {
		return missing("shift")
	}
	return p.Stay.validate()
}

type ContractorCrew struct {
	Stay
	Company   string `json:"company"`
	WorkOrder string `json:"work_order,omitempty"`
	CrewSize  int    `json:"crew_size,omitempty"`
}

func (ContractorCrew) Kind() RecordKind { return KindContractorCrew }

func (p ContractorCrew) Validate() error {
	if blank(p.Company) {
		return missing("company")
	}
	if p.CrewSize < 0 {
		return fmt.Errorf("%w: crew_size must not be negative", ErrInvalidPayload)
	}
	return p.Stay.validate()
}

type DeclaredItem struct {
	Description string `json:"description"`
	Serial      string `json:"serial,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
}

type AssetDeclaration struct {
	Stay
	Items []DeclaredItem `json:"items"`
}

func (AssetDeclaration) Kind() RecordKind { return KindAssetDeclaration }

func (p AssetDeclaration) Validate() error {
	if len(p.Items) == 0 {
		return missing("items")
	}
	for i, it := range p.Items {
		if blank(it.Description) {
			return missing(fmt.Sprintf("items[%d].description", i))
		}
	}
	return p.Stay.validate()
}

type DiningHallVisit struct {
	Stay
	Meal string `json:"meal,omitempty"`
}

func (DiningHallVisit) Kind() RecordKind { return KindDiningHallVisit }

func (p DiningHallVisit) Validate() error { return p.Stay.validate() }

type ChemicalStorageVisit struct {
	Stay
	Substances []string `json:"substances,omitempty"`
	PPEChecked bool     `json:"ppe_checked"`
}

func (ChemicalStorageVisit) Kind() RecordKind { return KindChemicalStorageVisit }

func (p ChemicalStorageVisit) Validate() error { return p.Stay.validate() }

// ── Outing-style kinds ───────────────────────────────────────────────────────

type CompanyVehicle struct {
	Outing
	Plate       string `json:"plate"`
	Driver      string `json:"driver"`
	Destination string `json:"destination,omitempty"`
	OdometerOut int    `json:"odometer_out,omitempty"`
	OdometerIn  int    `json:"odometer_in,omitempty"`
}

func (CompanyVehicle) Kind() RecordKind { return KindCompanyVehicle }

func (p CompanyVehicle) Validate() error {
	if blank(p.Plate) {
		return missing("plate")
	}
	if blank(p.Driver) {
		return missing("driver")
	}
	if p.OdometerIn != 0 && p.OdometerIn < p.OdometerOut {
		return fmt.Errorf("%w: odometer_in below odometer_out", ErrInvalidPayload)
	}
	return p.Outing.validate()
}

type PersonalLeave struct {
	Outing
	Reason       string `json:"reason"`
	AuthorizedBy string `json:"authorized_by"`
}

func (PersonalLeave) Kind() RecordKind { return KindPersonalLeave }

func (p PersonalLeave) Validate() error {
	if blank(p.Reason) {
		return missing("reason")
	}
	if blank(p.AuthorizedBy) {
		return missing("authorized_by")
	}
	return p.Outing.validate()
}

// ── Single-step kinds (closed on creation) ───────────────────────────────────

type OfficialExitPermit struct {
	ExitAt       *time.Time `json:"exit_at,omitempty"`
	AuthorizedBy string     `json:"authorized_by"`
	Reason       string     `json:"reason"`
	Destination  string     `json:"destination,omitempty"`
}

func (OfficialExitPermit) Kind() RecordKind { return KindOfficialExitPermit }

func (p OfficialExitPermit) Window() (*time.Time, *time.Time) { return nil, p.ExitAt }

func (OfficialExitPermit) Closed() bool { return true }

func (p OfficialExitPermit) Validate() error {
	if p.ExitAt == nil {
		return missing("exit_at")
	}
	if blank(p.AuthorizedBy) {
		return missing("authorized_by")
	}
	if blank(p.Reason) {
		return missing("reason")
	}
	return nil
}

type HandoverReport struct {
	HandedAt   *time.Time     `json:"handed_at,omitempty"`
	ReceivedBy string         `json:"received_by"`
	Items      []DeclaredItem `json:"items"`
	Notes      string         `json:"notes,omitempty"`
}

func (HandoverReport) Kind() RecordKind { return KindHandoverReport }

func (p HandoverReport) Window() (*time.Time, *time.Time) { return p.HandedAt, nil }

func (HandoverReport) Closed() bool { return true }

func (p HandoverReport) Validate() error {
	if p.HandedAt == nil {
		return missing("handed_at")
	}
	if blank(p.ReceivedBy) {
		return missing("received_by")
	}
	if len(p.Items) == 0 {
		return missing("items")
	}
	return nil
}

// ── Codec ────────────────────────────────────────────────────────────────────

func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: payload is nil", ErrInvalidPayload)
	}
	return json.Marshal(p)
}

// DecodePayload decodes raw JSON into the variant registered for kind.
func DecodePayload(kind RecordKind, raw []byte) (Payload, error) {
	switch kind {
	case KindSupplierVisit:
		return decodeAs[SupplierVisit](raw)
	case KindSupplierVehicle:
		return decodeAs[SupplierVehicle](raw)
	case KindCompanyVehicle:
		return decodeAs[CompanyVehicle](raw)
	case KindPersonalLeave:
		return decodeAs[PersonalLeave](raw)
	case KindOccasionalVisit:
		return decodeAs[OccasionalVisit](raw)
	case KindLocalStaffShift:
		return decodeAs[LocalStaffShift](raw)
	case KindContractorCrew:
		return decodeAs[ContractorCrew](raw)
	case KindAssetDeclaration:
		return decodeAs[AssetDeclaration](raw)
	case KindDiningHallVisit:
		return decodeAs[DiningHallVisit](raw)
	case KindChemicalStorageVisit:
		return decodeAs[ChemicalStorageVisit](raw)
	case KindOfficialExitPermit:
		return decodeAs[OfficialExitPermit](raw)
	case KindHandoverReport:
		return decodeAs[HandoverReport](raw)
	}
	return nil, fmt.Errorf("%w: unknown record kind %q", ErrInvalidPayload, kind)
}

func decodeAs[T Payload](raw []byte) (Payload, error) {
	var p T
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, nil
}
