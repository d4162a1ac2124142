package host

import (
	"sync"
	"testing"

	sshtesting "github.com/rileyhilliard/tunnelup/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
)

func TestSessions_SetAndGet(t *testing.T) {
	s := NewSessions()
	root := sshtesting.NewMockClient("box")

	assert.Nil(t, s.Get("root"))
	s.Set("root", root)
	assert.Same(t, root, s.Get("root"))
	assert.Equal(t, []string{"root"}, s.Users())
}

func TestSessions_SetReplacesAndClosesOld(t *testing.T) {
	s := NewSessions()
	old := sshtesting.NewMockClient("box")
	s.Set("root", old)
	s.Set("root", old.As("root"))

	_, _, _, err := old.Exec("true")
	assert.Error(t, err, "replaced session must be closed")
}

func TestSessions_SetSameClientKeepsItOpen(t *testing.T) {
	s := NewSessions()
	c := sshtesting.NewMockClient("box")
	s.Set("root", c)
	s.Set("root", c)

	_, _, _, err := c.Exec("true")
	assert.NoError(t, err)
}

func TestSessions_Clear(t *testing.T) {
	s := NewSessions()
	c := sshtesting.NewMockClient("box")
	s.Set("root", c)

	s.Clear("root")
	s.Clear("missing")

	assert.Nil(t, s.Get("root"))
	_, _, _, err := c.Exec("true")
	assert.Error(t, err)
}

func TestSessions_CloseAll(t *testing.T) {
	s := NewSessions()
	root := sshtesting.NewMockClient("box")
	user := root.As("vscode")
	s.Set("root", root)
	s.Set("vscode", user)

	assert.Equal(t, []string{"root", "vscode"}, s.Users())
	s.CloseAll()

	assert.Empty(t, s.Users())
	for _, c := range []*sshtesting.MockClient{root, user} {
		_, _, _, err := c.Exec("true")
		assert.Error(t, err)
	}
}

func TestSessions_ThreadSafety(t *testing.T) {
	s := NewSessions()
	base := sshtesting.NewMockClient("box")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := []string{"a", "b", "c"}[i%3]
			s.Set(user, base.As(user))
			_ = s.Get(user)
			_ = s.Users()
		}(i)
	}
	wg.Wait()
	assert.Len(t, s.Users(), 3)
}
