package access

import (
	"privata/internal/gate"
	regionmodels "privata/internal/region/models"
	"privata/internal/storage"
	"privata/pkg/domain"
)

// Operation describes one call into the engine on behalf of a data subject.
type Operation struct {
	Model      string
	SubjectID  domain.SubjectID
	Purpose    string
	LegalBasis gate.LegalBasis
	// Fields are the fields a read wants. Empty means every registered field.
	Fields []string
	// Request is used for region inference when no mapping exists.
	Request regionmodels.RequestMeta
	// Data is the write payload for Create and Update.
	Data           storage.Record
	RequireConsent bool
	// AllowStale lets reads go to a replica. Reads are primary by default so
	// a caller always observes its own writes.
	AllowStale bool
}

func (op Operation) gateRequest(kind gate.Operation, fields []string, entityID string, region domain.Region) gate.Request {
	return gate.Request{
		Model:          op.Model,
		Fields:         fields,
		Purpose:        op.Purpose,
		LegalBasis:     op.LegalBasis,
		SubjectID:      op.SubjectID,
		Operation:      kind,
		EntityID:       entityID,
		Region:         region,
		RequireConsent: op.RequireConsent,
	}
}

func (op Operation) consistency() storage.Consistency {
	if op.AllowStale {
		return storage.ConsistencyEventual
	}
	return storage.ConsistencyStrong
}
