package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Stage identifies a step of the proposal pipeline. Whether a stage takes part in
// a given proposal's pipeline is decided by the computed stage sequence, not by
// the stage value itself.
type Stage string

const (
	StagePreviousPolicyDetails Stage = "PREVIOUS_POLICY_DETAILS"
	StageCustomerInfo          Stage = "CUSTOMER_INFO"
	StageKYC                   Stage = "KYC"
	StageOtherVehicleDetails   Stage = "OTHER_VEHICLE_DETAILS"
	StageLiabilityDetails      Stage = "LIABILITY_DETAILS"
	StageNominationDetails     Stage = "NOMINATION_DETAILS"
	StagePaymentDeclaration    Stage = "PAYMENT_DECLARATION"
	StagePolicyIssuance        Stage = "POLICY_ISSUANCE"
)

// stageCodes are the numeric identifiers agents see on screen.
var stageCodes = map[Stage]int{
	StagePreviousPolicyDetails: -1,
	StageCustomerInfo:          0,
	StageKYC:                   1,
	StageOtherVehicleDetails:   2,
	StageLiabilityDetails:      3,
	StageNominationDetails:     4,
	StagePaymentDeclaration:    5,
	StagePolicyIssuance:        6,
}

// Code returns the display code of the stage, or an error sentinel of -2 for unknown stages.
func (s Stage) Code() int {
	code, ok := stageCodes[s]
	if !ok {
		return -2
	}
	return code
}

func (s Stage) Valid() bool {
	_, ok := stageCodes[s]
	return ok
}

// ParseStage accepts either a stage name or its display code.
func ParseStage(raw string) (Stage, error) {
	raw = strings.TrimSpace(raw)
	if code, err := strconv.Atoi(raw); err == nil {
		for stage, c := range stageCodes {
			if c == code {
				return stage, nil
			}
		}
		return "", fmt.Errorf("unknown stage code %d", code)
	}
	stage := Stage(strings.ToUpper(raw))
	if !stage.Valid() {
		return "", fmt.Errorf("unknown stage %q", raw)
	}
	return stage, nil
}
