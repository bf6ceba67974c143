package proposalValidator

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"presale/models"
)

var (
	mobileRegex      = regexp.MustCompile(`^\d{10}$`)
	pincodeRegex     = regexp.MustCompile(`^\d{6}$`)
	nomineeNameRegex = regexp.MustCompile(`^[A-Za-z ]+$`)
)

// Validator checks the data each stage needs before it can be left.
type Validator struct {
	validate             *validator.Validate
	zeroPremiumIsMissing bool
}

// New builds a validator. Field names in reports are the JSON names.
func New(cfg models.WorkflowConfig) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return mobileRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("pincode", func(fl validator.FieldLevel) bool {
		return pincodeRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("nomineename", func(fl validator.FieldLevel) bool {
		return nomineeNameRegex.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	return &Validator{validate: v, zeroPremiumIsMissing: cfg.ZeroPremiumIsMissing}
}

// Stage validates p for leaving stage. It returns nil or a *ValidationError.
// KYC is judged by the KYC gate and always passes here.
func (v *Validator) Stage(stage models.Stage, p *models.Proposal) error {
	errs := &ValidationError{Stage: stage}

	switch stage {
	case models.StagePreviousPolicyDetails:
		v.previousPolicy(errs, p.PreviousPolicyDetails)
	case models.StageCustomerInfo:
		v.customer(errs, p.CustomerInfo)
	case models.StageKYC, models.StageLiabilityDetails:
	case models.StageOtherVehicleDetails:
		v.structFields(errs, p.VehicleDetails)
	case models.StageNominationDetails:
		v.structFields(errs, p.NomineeDetails)
	case models.StagePaymentDeclaration:
		v.structFields(errs, p.PaymentDeclaration)
		if !p.HasQuote() {
			errs.add("selectedQuote", "required", "A quote must be selected before payment!")
		}
		if p.KYCStatus != models.KYCVerified {
			errs.add("kycStatus", "verified", "KYC must be verified before payment!")
		}
	case models.StagePolicyIssuance:
		return fmt.Errorf("stage %s has no exit", stage)
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
	return errs.orNil()
}

// sections names the proposal part each stage fills, used to prefix failures
// reported for an earlier stage.
var sections = map[models.Stage]string{
	models.StagePreviousPolicyDetails: "previousPolicyDetails",
	models.StageCustomerInfo:          "customerInfo",
	models.StageOtherVehicleDetails:   "vehicleDetails",
	models.StageNominationDetails:     "nomineeDetails",
}

// Earlier checks that every stage before stage in seq still holds its data.
// A field is reported under its section, e.g. vehicleDetails.chassisNumber.
func (v *Validator) Earlier(seq []models.Stage, stage models.Stage, p *models.Proposal) error {
	errs := &ValidationError{Stage: stage}
	for _, st := range seq {
		if st.Code() >= stage.Code() {
			break
		}
		v.earlier(errs, st, p)
	}
	return errs.orNil()
}

// Through validates p for leaving stage together with every stage before it.
func (v *Validator) Through(seq []models.Stage, stage models.Stage, p *models.Proposal) error {
	errs := &ValidationError{Stage: stage}
	if err := v.Earlier(seq, stage, p); err != nil {
		errs.Fields = append(errs.Fields, err.(*ValidationError).Fields...)
	}

	err := v.Stage(stage, p)
	var own *ValidationError
	switch {
	case err == nil:
	case errors.As(err, &own):
		for _, f := range own.Fields {
			if !errs.Has(f.Field) {
				errs.Fields = append(errs.Fields, f)
			}
		}
	default:
		return err
	}
	return errs.orNil()
}

func (v *Validator) earlier(errs *ValidationError, stage models.Stage, p *models.Proposal) {
	if stage == models.StageKYC {
		if p.KYCStatus != models.KYCVerified {
			errs.add("kycStatus", "verified", "KYC must be verified first!")
		}
		return
	}

	part := &ValidationError{}
	switch stage {
	case models.StagePreviousPolicyDetails:
		v.previousPolicy(part, p.PreviousPolicyDetails)
	case models.StageCustomerInfo:
		v.customer(part, p.CustomerInfo)
	case models.StageOtherVehicleDetails:
		v.structFields(part, p.VehicleDetails)
	case models.StageNominationDetails:
		v.structFields(part, p.NomineeDetails)
	}
	for _, f := range part.Fields {
		f.Field = sections[stage] + "." + f.Field
		errs.Fields = append(errs.Fields, f)
	}
}

// CustomerInfoComplete reports whether the customer section would pass stage 0.
func (v *Validator) CustomerInfoComplete(ci models.CustomerInfo) bool {
	errs := &ValidationError{}
	v.customer(errs, ci)
	return len(errs.Fields) == 0
}

// PreviousPolicyComplete reports whether the previous-policy section would pass stage -1.
func (v *Validator) PreviousPolicyComplete(prev *models.PreviousPolicyDetails) bool {
	errs := &ValidationError{}
	v.previousPolicy(errs, prev)
	return len(errs.Fields) == 0
}

func (v *Validator) customer(errs *ValidationError, ci models.CustomerInfo) {
	if ci.CustomerType == "" {
		ci.CustomerType = models.CustomerIndividual
	}
	v.structFields(errs, ci)
}

func (v *Validator) previousPolicy(errs *ValidationError, prev *models.PreviousPolicyDetails) {
	if prev == nil {
		prev = &models.PreviousPolicyDetails{}
	}
	v.structFields(errs, *prev)

	switch {
	case prev.PremiumPaid == nil, math.IsNaN(*prev.PremiumPaid):
		errs.add("previousPremiumPaid", "required", "Previous premium paid is required!")
	case *prev.PremiumPaid == 0 && v.zeroPremiumIsMissing:
		errs.add("previousPremiumPaid", "required", "Previous premium paid is required!")
	case *prev.PremiumPaid < 0:
		errs.add("previousPremiumPaid", "min", "Previous premium paid cannot be negative!")
	}
}

func (v *Validator) structFields(errs *ValidationError, s interface{}) {
	err := v.validate.Struct(s)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs.add("_", "invalid", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		errs.add(fe.Field(), fe.Tag(), message(fe))
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required!", fe.Field())
	case "email":
		return "Invalid email format!"
	case "mobile":
		return fmt.Sprintf("%s must be a 10-digit number!", fe.Field())
	case "pincode":
		return "Pincode must be 6 digits!"
	case "nomineename":
		return "Nominee name may contain only letters and spaces!"
	case "datetime":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format!", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s!", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid!", fe.Field())
}
