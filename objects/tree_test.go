// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTreeBody(entries ...struct {
	mode string
	name string
	id   ID
}) []byte {
	var body []byte
	for _, e := range entries {
		body = append(body, e.mode...)
		body = append(body, ' ')
		body = append(body, e.name...)
		body = append(body, 0)
		body = append(body, e.id[:]...)
	}
	return body
}

func TestParseTreeEntries(t *testing.T) {
	id1 := mustID(t, "1111111111111111111111111111111111111111")
	id2 := mustID(t, "2222222222222222222222222222222222222222")

	body := buildTreeBody(
		struct {
			mode string
			name string
			id   ID
		}{"100644", "README.md", id1},
		struct {
			mode string
			name string
			id   ID
		}{"40000", "src", id2},
	)

	tree, err := parseTree(body)
	require.NoError(t, err)
	require.Equal(t, 2, tree.Len())

	e0 := tree.Entry(0)
	assert.Equal(t, "README.md", string(e0.Filename()))
	assert.Equal(t, id1, e0.ID())
	assert.False(t, e0.FileMode().IsDir())

	e1 := tree.Entry(1)
	assert.Equal(t, "src", string(e1.Filename()))
	assert.True(t, e1.FileMode().IsDir())
}

func TestParseTreeRejectsTrailingBytes(t *testing.T) {
	id1 := mustID(t, "1111111111111111111111111111111111111111")
	body := buildTreeBody(struct {
		mode string
		name string
		id   ID
	}{"100644", "a", id1})
	body = append(body, 'x')

	_, err := parseTree(body)
	assert.ErrorIs(t, err, ErrInvalidTree)
}

func TestParseTreeRejectsTruncatedID(t *testing.T) {
	body := []byte("100644 a\x00short")
	_, err := parseTree(body)
	assert.ErrorIs(t, err, ErrInvalidTree)
}

func TestParseTreeEmptyBody(t *testing.T) {
	tree, err := parseTree(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, tree.Len())
}
