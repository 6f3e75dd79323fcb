package wgslc

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateBatchPreservesOrder(t *testing.T) {
	var inputs []BatchInput
	for i := 0; i < 8; i++ {
		inputs = append(inputs, BatchInput{
			Name: fmt.Sprintf("shader-%d", i),
			Source: fmt.Sprintf(`
@compute @workgroup_size(%d)
fn main() {
}
`, i+1),
		})
	}

	results, err := TranslateBatch(context.Background(), inputs, DefaultOptions(), 3)
	require.NoError(t, err)
	require.Len(t, results, len(inputs))
	for i, r := range results {
		assert.Equal(t, inputs[i].Name, r.Name)
		assert.NoError(t, r.Err)
		assert.NotEmpty(t, r.Data)
	}
}

func TestTranslateBatchIsolatesFailures(t *testing.T) {
	inputs := []BatchInput{
		{Name: "good", Source: "@compute @workgroup_size(1)\nfn main() {}"},
		{Name: "bad", Source: "fn broken( {"},
		{Name: "also-good", Source: "@compute @workgroup_size(2)\nfn main() {}"},
	}

	results, err := TranslateBatch(context.Background(), inputs, DefaultOptions(), 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.NotEmpty(t, results[0].Data)
	assert.Error(t, results[1].Err)
	assert.Empty(t, results[1].Data)
	assert.NoError(t, results[2].Err)
}

func TestTranslateBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inputs := []BatchInput{
		{Name: "never", Source: "@compute @workgroup_size(1)\nfn main() {}"},
	}
	_, err := TranslateBatch(ctx, inputs, DefaultOptions(), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTranslateBatchEmpty(t *testing.T) {
	results, err := TranslateBatch(context.Background(), nil, DefaultOptions(), 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}
