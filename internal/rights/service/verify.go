package service

import (
	"context"
	"slices"

	"privata/internal/rights/models"
	dErrors "privata/pkg/domain-errors"
)

// Verifier confirms the requester is the data subject before any step runs.
type Verifier interface {
	Verify(ctx context.Context, req *models.Request) error
}

// DefaultVerificationMethods are the identity checks accepted out of the box.
var DefaultVerificationMethods = []string{"authenticated_session", "email", "id_document", "operator"}

// MethodVerifier accepts requests verified by one of a fixed set of methods.
// The check itself happened upstream; this guards against requests recorded
// with an unknown or missing method.
type MethodVerifier struct {
	methods []string
}

func NewMethodVerifier(methods ...string) *MethodVerifier {
	return &MethodVerifier{methods: slices.Clone(methods)}
}

func (v *MethodVerifier) Verify(_ context.Context, req *models.Request) error {
	if !slices.Contains(v.methods, req.VerificationMethod) {
		return dErrors.New(dErrors.CodeUnauthorized, "identity verification method "+req.VerificationMethod+" is not accepted")
	}
	return nil
}
