// SPDX-License-Identifier: GPL-3.0-or-later

package closepool_test

import (
	"errors"
	"testing"

	"github.com/rbmk-project/mocknet/closepool"
	"github.com/stretchr/testify/assert"
)

// closer records the order in which it is closed.
type closer struct {
	err   error
	name  string
	order *[]string
}

func (c *closer) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

func TestPool(t *testing.T) {
	t.Run("closes in reverse order", func(t *testing.T) {
		var order []string
		pool := &closepool.Pool{}
		pool.Add(&closer{name: "network", order: &order})
		pool.Add(&closer{name: "peer0", order: &order})
		pool.Add(&closer{name: "peer1", order: &order})
		assert.Equal(t, 3, pool.Len())

		assert.NoError(t, pool.Close())
		assert.Equal(t, []string{"peer1", "peer0", "network"}, order)
		assert.Equal(t, 0, pool.Len())
	})

	t.Run("joins the errors", func(t *testing.T) {
		var order []string
		err0 := errors.New("err0")
		err1 := errors.New("err1")
		pool := &closepool.Pool{}
		pool.Add(&closer{name: "a", err: err0, order: &order})
		pool.Add(&closer{name: "b", order: &order})
		pool.Add(&closer{name: "c", err: err1, order: &order})

		err := pool.Close()
		assert.ErrorIs(t, err, err0)
		assert.ErrorIs(t, err, err1)
		assert.Equal(t, []string{"c", "b", "a"}, order)
	})

	t.Run("second close is a no-op", func(t *testing.T) {
		var order []string
		pool := &closepool.Pool{}
		pool.Add(&closer{name: "a", order: &order})
		assert.NoError(t, pool.Close())
		assert.NoError(t, pool.Close())
		assert.Equal(t, []string{"a"}, order)
	})
}
