package memory_test

import (
	"testing"

	"github.com/aretw0/anneal/pkg/adapters/memory"
	"github.com/aretw0/anneal/pkg/ports"
)

func TestStore_Contract(t *testing.T) {
	ports.RunTrajectoryStoreContract(t, memory.NewStore())
}
