// file: internal/models/models_test.go
// version: 2.0.0
// guid: 2f91fcd2-1801-4567-9a02-dadeb306edac

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDuplicateGroup_ByteAccounting(t *testing.T) {
	now := time.Now()
	g := NewDuplicateGroup("g1", []FileIdentity{
		{Path: "/a.flac", Size: 300, ModTime: now},
		{Path: "/b.mp3", Size: 100, ModTime: now},
		{Path: "/c.mp3", Size: 50, ModTime: now},
	})

	assert.Equal(t, int64(450), g.TotalBytes)
	assert.Equal(t, int64(150), g.WastedBytes)
	assert.Nil(t, g.RecommendedKeep)
}

func TestFileIdentity_Same(t *testing.T) {
	now := time.Now()
	base := FileIdentity{Path: "/a.wav", Size: 10, ModTime: now}

	tests := []struct {
		name  string
		other FileIdentity
		want  bool
	}{
		{"identical", base, true},
		{"same instant different location", FileIdentity{Path: "/a.wav", Size: 10, ModTime: now.UTC()}, true},
		{"size changed", FileIdentity{Path: "/a.wav", Size: 11, ModTime: now}, false},
		{"touched", FileIdentity{Path: "/a.wav", Size: 10, ModTime: now.Add(time.Second)}, false},
		{"other path", FileIdentity{Path: "/b.wav", Size: 10, ModTime: now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Same(tt.other))
		})
	}
}
