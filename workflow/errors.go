package workflow

import (
	"errors"

	"presale/issuer"
	"presale/models"
	"presale/repository"
)

// ErrStageNotReached rejects work on a stage beyond the proposal's progress.
// ErrStageMismatch rejects a stage that is not part of this proposal's sequence.
var (
	ErrStageNotReached    = errors.New("stage not reached yet")
	ErrStageMismatch      = errors.New("stage is not part of this proposal")
	ErrDeleteNotConfirmed = errors.New("deletion must be confirmed twice")
	ErrNoContact          = errors.New("no email or phone to send the code to")
	ErrInvalidInput       = errors.New("invalid form input")
	ErrQuoteLocked        = errors.New("quote cannot change after the premium is paid")
)

func converted(p *models.Proposal) error {
	e := &issuer.AlreadyConvertedError{ProposalID: p.ID}
	if p.SelectedQuote != nil {
		e.PolicyNumber = p.SelectedQuote.PolicyNumber
	}
	return e
}

// storeErr turns the repository's conversion guard into the public error kind.
func storeErr(id string, err error) error {
	if errors.Is(err, repository.ErrAlreadyConverted) {
		return &issuer.AlreadyConvertedError{ProposalID: id}
	}
	return err
}
