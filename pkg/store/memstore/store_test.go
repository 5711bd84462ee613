package memstore_test

import (
	"testing"

	"github.com/salonkit/billingcore/pkg/store/memstore"
	"github.com/salonkit/billingcore/pkg/store/storetest"
)

func TestStore(t *testing.T) {
	t.Parallel()
	storetest.Run(t, func(*testing.T) storetest.Store { return memstore.New() })
}
