package msel

import (
	"github.com/cyroid/cyroid/pkg/cyerr"
	"github.com/cyroid/cyroid/pkg/repository"
	"github.com/cyroid/cyroid/pkg/types"
	"github.com/google/uuid"
)

// Manager owns the import/replace contract for a range's MSEL: parsing
// raw text and swapping it in for whatever MSEL (if any) the range
// already had.
type Manager struct {
	repo repository.Repository
}

// NewManager creates a Manager over repo.
func NewManager(repo repository.Repository) *Manager {
	return &Manager{repo: repo}
}

// Import parses rawText and replaces rangeID's MSEL: the prior MSEL (if
// any) and its Injects are deleted first, then the new MSEL and its
// Injects are inserted. This is not a merge — a range has at most one
// MSEL at a time. The deletes and inserts are separate repository calls,
// not one transaction: an error partway through returns with the prior
// MSEL already removed and the new one possibly only partly stored.
func (m *Manager) Import(rangeID, name, rawText string) (*types.MSEL, error) {
	injects, err := Parse(rawText)
	if err != nil {
		return nil, err
	}
	for _, inj := range injects {
		if err := validate(inj); err != nil {
			return nil, err
		}
	}

	if prior, err := m.repo.GetMSELByRange(rangeID); err == nil {
		priorInjects, err := m.repo.ListInjectsByMSEL(prior.ID)
		if err != nil {
			return nil, err
		}
		for _, inj := range priorInjects {
			if err := m.repo.DeleteInject(inj.ID); err != nil {
				return nil, err
			}
		}
		if err := m.repo.DeleteMSEL(prior.ID); err != nil {
			return nil, err
		}
	} else if !cyerr.Is(err, cyerr.KindNotFound) {
		return nil, err
	}

	msel := &types.MSEL{
		ID:      uuid.NewString(),
		RangeID: rangeID,
		Name:    name,
		RawText: rawText,
	}
	if err := m.repo.CreateMSEL(msel); err != nil {
		return nil, err
	}

	for i := range injects {
		injects[i].ID = uuid.NewString()
		injects[i].MSELID = msel.ID
		if err := m.repo.CreateInject(&injects[i]); err != nil {
			return nil, err
		}
	}

	return msel, nil
}

// Skip marks a Pending inject Skipped. Non-Pending injects cannot be
// skipped.
func (m *Manager) Skip(injectID string) error {
	inject, err := m.repo.GetInject(injectID)
	if err != nil {
		return err
	}
	if inject.Status != types.InjectStatusPending {
		return cyerr.Validation("inject %s is %s, not pending", injectID, inject.Status)
	}
	inject.Status = types.InjectStatusSkipped
	return m.repo.UpdateInject(inject)
}
