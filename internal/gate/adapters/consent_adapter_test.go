package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	consentmodels "privata/internal/consent/models"
	consentservice "privata/internal/consent/service"
	consentstore "privata/internal/consent/store"
	"privata/pkg/domain"
	"privata/pkg/platform/audit/publishers/compliance"
	auditmemory "privata/pkg/platform/audit/store/memory"
)

func TestConsentAdapterReadsLedger(t *testing.T) {
	ctx := context.Background()
	svc := consentservice.New(consentstore.New(), compliance.New(auditmemory.New()))
	adapter := NewConsentAdapter(svc)

	for _, strong := range []bool{true, false} {
		ok, err := adapter.Check(ctx, domain.SubjectID("s1"), "marketing", strong)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	_, err := svc.Grant(ctx, "s1", consentmodels.Purpose("marketing"), nil, 0)
	require.NoError(t, err)

	for _, strong := range []bool{true, false} {
		ok, err := adapter.Check(ctx, "s1", "marketing", strong)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}
