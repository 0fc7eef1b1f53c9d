package probe

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseDPIDR(t *testing.T) {
	tests := []struct {
		name string
		raw  uint32
		want DPIDR
	}{
		{
			name: "Cortex-M4 SW-DP",
			raw:  0x2BA01477,
			want: DPIDR{Raw: 0x2BA01477, Revision: 2, PartNo: 0xBA, Version: 1, Designer: 0x23B},
		},
		{
			name: "Cortex-M0+ MINDP",
			raw:  0x0BC12477,
			want: DPIDR{Raw: 0x0BC12477, Revision: 0, PartNo: 0xBC, Min: true, Version: 2, Designer: 0x23B},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDPIDR(tt.raw)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseDPIDR() mismatch (-want +got):\n%s", diff)
			}
			if got.DesignerName() != "ARM" {
				t.Errorf("DesignerName() = %q", got.DesignerName())
			}
		})
	}
}

func TestDPIDRString(t *testing.T) {
	if s := ParseDPIDR(0x2BA01477).String(); s != "0x2BA01477 (ARM, DPv1, part 0xBA, rev 2)" {
		t.Errorf("String() = %q", s)
	}
	if s := ParseDPIDR(0x00000FFF).DesignerName(); s != "Unknown (0x7FF)" {
		t.Errorf("DesignerName() = %q", s)
	}
}
