package airac

import (
	"testing"
	"time"
)

func BenchmarkLocate_Recent(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Locate(2022, time.May, 23)
	}
}

func BenchmarkLocate_FarPast(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Locate(1066, time.October, 14)
	}
}

func BenchmarkIdent(b *testing.B) {
	c := Locate(2022, time.May, 23)
	for i := 0; i < b.N; i++ {
		_ = c.Ident()
	}
}

func BenchmarkCyclesInYear(b *testing.B) {
	for i := 0; i < b.N; i++ {
		CyclesInYear(2024)
	}
}
