package score_test

import (
	"testing"

	"github.com/kouyulab/kouyu/internal/score"
)

func TestLCSLength(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"你好", "", 0},
		{"", "你好", 0},
		{"你好", "你好", 2},
		{"好你", "你好", 1},
		{"我很好", "我不太好", 2},    // 我好
		{"abcde", "ace", 3},
		{"abc", "xyz", 0},
		{"今天天气很好", "天气好", 3},
	}
	for _, c := range cases {
		if got := score.LCSLength(c.a, c.b); got != c.want {
			t.Errorf("LCSLength(%q, %q)=%d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestLCSLength_Symmetric(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"你好吗", "好你"},
		{"abcdefg", "bdfh"},
		{"我想喝水", "他想喝茶"},
	}
	for _, p := range pairs {
		ab := score.LCSLength(p[0], p[1])
		ba := score.LCSLength(p[1], p[0])
		if ab != ba {
			t.Errorf("LCSLength(%q,%q)=%d but reversed=%d", p[0], p[1], ab, ba)
		}
	}
}

func TestLCSLength_SelfEqualsLength(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"你", "你好", "我今天很开心", "hello世界"} {
		want := len([]rune(s))
		if got := score.LCSLength(s, s); got != want {
			t.Errorf("LCSLength(%q, itself)=%d, want %d", s, got, want)
		}
	}
}

func TestLCSLength_LongInputs(t *testing.T) {
	t.Parallel()

	// A few hundred characters must compute exactly without blowing up.
	var a, b []rune
	for i := 0; i < 300; i++ {
		a = append(a, rune('一'+i))
		if i%2 == 0 {
			b = append(b, rune('一'+i))
		}
	}
	if got := score.LCSLength(string(a), string(b)); got != len(b) {
		t.Errorf("LCSLength subsequence=%d, want %d", got, len(b))
	}
}
