/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Claim:
    ClaimDTO, CreateClaimRequest, CloseClaimRequest, ReopenClaimRequest

  Loss:
    LossDTO, DeclareLossRequest

  Service:
    ServiceDTO, InitServicesRequest, CalculateResponse

  Indemnification:
    IndemnificationDTO, DetailLineDTO, ReviewRequest, ReviewResponse

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/benefit.go: BenefitJSON type
*/
package api

import (
	"github.com/warp/claims-engine/claim"
)

// =============================================================================
// CLAIM TYPES
// =============================================================================

// ClaimDTO represents a claim and its full graph in API responses.
type ClaimDTO struct {
	ID              string    `json:"id"`
	Number          string    `json:"number"`
	Status          string    `json:"status"`
	SubStatus       string    `json:"sub_status,omitempty"`
	ReopenedReason  string    `json:"reopened_reason,omitempty"`
	DeclarationDate string    `json:"declaration_date"`
	EndDate         *string   `json:"end_date,omitempty"`
	Claimant        PartyDTO  `json:"claimant"`
	Losses          []LossDTO `json:"losses"`
}

// PartyDTO represents a referenced person or organization.
type PartyDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateClaimRequest is the request to open a claim.
type CreateClaimRequest struct {
	Number   string   `json:"number"`
	Claimant PartyDTO `json:"claimant"`
}

// CloseClaimRequest is the request to close a claim.
type CloseClaimRequest struct {
	SubStatus string `json:"sub_status"`
}

// ReopenClaimRequest is the request to reopen a closed claim.
type ReopenClaimRequest struct {
	Reason string `json:"reason"` // relapse, reclamation, regularization
}

// =============================================================================
// LOSS TYPES
// =============================================================================

// LossDTO represents a declared loss.
type LossDTO struct {
	ID         string       `json:"id"`
	StartDate  string       `json:"start_date"`
	EndDate    *string      `json:"end_date,omitempty"`
	Descriptor string       `json:"descriptor"`
	Event      string       `json:"event"`
	MainLossID string       `json:"main_loss_id,omitempty"`
	Services   []ServiceDTO `json:"services"`
}

// DeclareLossRequest is the request to declare a loss on a claim.
// RelapseOf links the new loss to an earlier loss of the same claim.
type DeclareLossRequest struct {
	DescriptorCode string  `json:"descriptor_code"`
	DescriptorName string  `json:"descriptor_name,omitempty"`
	WithEndDate    bool    `json:"with_end_date,omitempty"`
	EventCode      string  `json:"event_code"`
	EventName      string  `json:"event_name,omitempty"`
	StartDate      string  `json:"start_date"`
	EndDate        *string `json:"end_date,omitempty"`
	RelapseOf      string  `json:"relapse_of,omitempty"`
}

// =============================================================================
// SERVICE TYPES
// =============================================================================

// ServiceDTO represents a delivered service.
type ServiceDTO struct {
	ID               string               `json:"id"`
	BenefitCode      string               `json:"benefit_code"`
	BenefitName      string               `json:"benefit_name"`
	Kind             string               `json:"kind"`
	Status           string               `json:"status"`
	OptionID         string               `json:"option_id"`
	MainCurrency     string               `json:"main_currency"`
	Expenses         []ExpenseDTO         `json:"expenses,omitempty"`
	Indemnifications []IndemnificationDTO `json:"indemnifications"`
}

// ExpenseDTO represents a cost linked to a service.
type ExpenseDTO struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Label    string `json:"label,omitempty"`
}

// InitServicesRequest is the request to attach benefit services to a loss.
type InitServicesRequest struct {
	OptionID     string       `json:"option_id"`
	MainCurrency string       `json:"main_currency"`
	PolicyOwner  PartyDTO     `json:"policy_owner"`
	CoveredData  string       `json:"covered_data,omitempty"`
	BenefitCodes []string     `json:"benefit_codes"`
	Expenses     []ExpenseDTO `json:"expenses,omitempty"`
}

// CalculateResponse reports the outcome of a calculation run.
type CalculateResponse struct {
	OK      bool       `json:"ok"`
	Errors  []string   `json:"errors,omitempty"`
	Service ServiceDTO `json:"service"`
}

// =============================================================================
// INDEMNIFICATION TYPES
// =============================================================================

// IndemnificationDTO represents a compensation record.
type IndemnificationDTO struct {
	ID            string          `json:"id"`
	ServiceID     string          `json:"service_id"`
	Kind          string          `json:"kind"`
	StartDate     *string         `json:"start_date,omitempty"`
	EndDate       *string         `json:"end_date,omitempty"`
	Status        string          `json:"status"`
	Amount        string          `json:"amount"`
	Currency      string          `json:"currency"`
	LocalAmount   *string         `json:"local_amount,omitempty"`
	LocalCurrency *string         `json:"local_currency,omitempty"`
	Beneficiary   PartyDTO        `json:"beneficiary"`
	Manual        bool            `json:"manual,omitempty"`
	Details       []DetailLineDTO `json:"details"`
}

// DetailLineDTO represents one itemized component.
type DetailLineDTO struct {
	Kind          string  `json:"kind"`
	StartDate     *string `json:"start_date,omitempty"`
	EndDate       *string `json:"end_date,omitempty"`
	AmountPerUnit string  `json:"amount_per_unit"`
	UnitCount     string  `json:"unit_count"`
	Amount        string  `json:"amount"`
}

// ReviewRequest carries the operator's decisions over a selected working
// set: indemnification ID to "validate", "reject" or "nothing".
type ReviewRequest struct {
	Selector  string            `json:"selector"`
	Limit     int               `json:"limit,omitempty"`
	Decisions map[string]string `json:"decisions"`
}

// ReviewResponse reports the applied review.
type ReviewResponse struct {
	Reviewed int      `json:"reviewed"`
	Errors   []string `json:"errors,omitempty"`
}

// =============================================================================
// BENEFIT TYPES
// =============================================================================

// BenefitDTO represents a registered benefit.
type BenefitDTO struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// =============================================================================
// DOMAIN -> DTO CONVERSION
// =============================================================================

func toClaimDTO(c *claim.Claim) ClaimDTO {
	dto := ClaimDTO{
		ID:              string(c.ID),
		Number:          c.Number,
		Status:          string(c.Status),
		SubStatus:       string(c.SubStatus),
		ReopenedReason:  string(c.ReopenedReason),
		DeclarationDate: c.DeclarationDate.String(),
		Claimant:        PartyDTO{ID: string(c.Claimant.ID), Name: c.Claimant.Name},
		Losses:          []LossDTO{},
	}
	if c.EndDate != nil {
		s := c.EndDate.String()
		dto.EndDate = &s
	}
	for _, loss := range c.Losses {
		dto.Losses = append(dto.Losses, toLossDTO(loss))
	}
	return dto
}

func toLossDTO(l *claim.Loss) LossDTO {
	dto := LossDTO{
		ID:         string(l.ID),
		StartDate:  l.StartDate.String(),
		Descriptor: l.Descriptor.Code,
		Event:      l.Event.Code,
		Services:   []ServiceDTO{},
	}
	if l.EndDate != nil {
		s := l.EndDate.String()
		dto.EndDate = &s
	}
	if l.MainLoss != nil {
		dto.MainLossID = string(l.MainLoss.ID)
	}
	for _, svc := range l.Services {
		dto.Services = append(dto.Services, toServiceDTO(svc))
	}
	return dto
}

func toServiceDTO(s *claim.DeliveredService) ServiceDTO {
	dto := ServiceDTO{
		ID:               string(s.ID),
		BenefitCode:      s.Benefit.Code,
		BenefitName:      s.Benefit.Name,
		Kind:             string(s.Benefit.Kind),
		Status:           string(s.Status),
		OptionID:         string(s.Option.ID),
		MainCurrency:     string(s.Option.MainCurrency),
		Indemnifications: []IndemnificationDTO{},
	}
	for _, e := range s.Expenses {
		dto.Expenses = append(dto.Expenses, ExpenseDTO{
			Amount:   e.Amount.Amount.String(),
			Currency: string(e.Amount.Currency),
			Label:    e.Label,
		})
	}
	for _, ind := range s.Indemnifications {
		dto.Indemnifications = append(dto.Indemnifications, toIndemnificationDTO(ind))
	}
	return dto
}

func toIndemnificationDTO(i *claim.Indemnification) IndemnificationDTO {
	dto := IndemnificationDTO{
		ID:          string(i.ID),
		ServiceID:   string(i.Service.ID),
		Kind:        string(i.Kind),
		Status:      string(i.Status),
		Amount:      i.Amount.Amount.String(),
		Currency:    string(i.Amount.Currency),
		Beneficiary: PartyDTO{ID: string(i.Beneficiary.ID), Name: i.Beneficiary.Name},
		Manual:      i.Manual,
		Details:     []DetailLineDTO{},
	}
	if !i.StartDate.IsZero() {
		s := i.StartDate.String()
		dto.StartDate = &s
	}
	if !i.EndDate.IsZero() {
		s := i.EndDate.String()
		dto.EndDate = &s
	}
	if i.LocalAmount != nil {
		amount := i.LocalAmount.Amount.String()
		currency := string(i.LocalAmount.Currency)
		dto.LocalAmount = &amount
		dto.LocalCurrency = &currency
	}
	for _, det := range i.Details {
		line := DetailLineDTO{
			Kind:          string(det.Kind),
			AmountPerUnit: det.AmountPerUnit.String(),
			UnitCount:     det.UnitCount.String(),
			Amount:        det.Amount.String(),
		}
		if det.StartDate != nil {
			s := det.StartDate.String()
			line.StartDate = &s
		}
		if det.EndDate != nil {
			s := det.EndDate.String()
			line.EndDate = &s
		}
		dto.Details = append(dto.Details, line)
	}
	return dto
}
