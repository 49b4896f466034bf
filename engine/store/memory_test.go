package store_test

import (
	"testing"

	"github.com/warp/repledger/engine"
	"github.com/warp/repledger/engine/store"
	"github.com/warp/repledger/engine/storetest"
)

func TestMemory_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) engine.TxRepository {
		return store.NewMemory()
	})
}
