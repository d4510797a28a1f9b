package preprocess

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addStep(name string, delta uint8) Step {
	return Step{
		Name: name,
		Apply: func(g *image.Gray) (*image.Gray, error) {
			out := cloneGray(g)
			for i := range out.Pix {
				out.Pix[i] += delta
			}
			return out, nil
		},
	}
}

func TestChain_RunsInOrderWithoutMutatingInput(t *testing.T) {
	in := newGray(3, 2)
	var seen []string
	chain := Chain{addStep("a", 1), addStep("b", 10)}

	out, err := chain.RunWithHook(in, func(i int, name string, g *image.Gray) {
		seen = append(seen, name)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, []string{"a", "b"}, chain.Names())
	assert.Equal(t, uint8(11), out.Pix[0])
	assert.Equal(t, uint8(0), in.Pix[0])
}

func TestChain_WrapsStepError(t *testing.T) {
	boom := errors.New("boom")
	chain := Chain{
		addStep("ok", 1),
		{Name: "fails", Apply: func(*image.Gray) (*image.Gray, error) { return nil, boom }},
	}
	_, err := chain.Run(newGray(2, 2))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "fails")
}

func TestChain_RejectsEmpty(t *testing.T) {
	_, err := Chain{}.Run(nil)
	require.ErrorIs(t, err, ErrEmptyImage)
	_, err = Chain{}.Run(image.NewGray(image.Rectangle{}))
	require.ErrorIs(t, err, ErrEmptyImage)
}
