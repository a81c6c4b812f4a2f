// Package firewall compiles a VPC's FirewallRule set into a deterministic
// iptables script, per SPEC_FULL.md §4.7. The Driver's ApplyIPTables verb
// takes the compiled rule lines as-is; this package never shells out or
// touches a live netfilter table itself.
package firewall

import (
	"fmt"
	"sort"
	"strings"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/naming"
)

// Compile produces the ordered rule lines for vpc's chain, sorted by
// (priority asc, id lex) for stable output: re-compiling the same rule set
// always yields byte-identical lines, so the Driver can diff against what
// it last pushed and skip a no-op apply.
func Compile(vpc *v1alpha1.VPC, rules []*v1alpha1.FirewallRule) []string {
	ordered := make([]*v1alpha1.FirewallRule, len(rules))
	copy(ordered, rules)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Spec.Priority != ordered[j].Spec.Priority {
			return ordered[i].Spec.Priority < ordered[j].Spec.Priority
		}
		return ordered[i].Name < ordered[j].Name
	})

	inChain := naming.ChainNameForVPC(vpc.Name, "in")
	outChain := naming.ChainNameForVPC(vpc.Name, "out")

	lines := make([]string, 0, len(ordered)+6)
	lines = append(lines,
		fmt.Sprintf("-N %s", inChain),
		fmt.Sprintf("-N %s", outChain),
		fmt.Sprintf("-A %s -m state --state ESTABLISHED,RELATED -j ACCEPT", inChain),
		fmt.Sprintf("-A %s -s %s -d %s -j ACCEPT", inChain, vpc.Spec.CIDR, vpc.Spec.CIDR),
		fmt.Sprintf("-A %s -m state --state ESTABLISHED,RELATED -j ACCEPT", outChain),
		fmt.Sprintf("-A %s -s %s -d %s -j ACCEPT", outChain, vpc.Spec.CIDR, vpc.Spec.CIDR),
	)

	for _, r := range ordered {
		lines = append(lines, compileRule(r, inChain, outChain))
	}

	lines = append(lines,
		fmt.Sprintf("-A %s -j DROP", inChain),
		fmt.Sprintf("-A %s -j DROP", outChain),
	)
	return lines
}

// compileRule renders one FirewallRule as a single -A line. Inbound rules
// match on source CIDR (traffic arriving at the VPC), outbound on
// destination CIDR (traffic leaving it), per §4.7.
func compileRule(r *v1alpha1.FirewallRule, inChain, outChain string) string {
	chain := inChain
	if r.Spec.Direction == v1alpha1.FirewallDirectionOutbound {
		chain = outChain
	}

	var b strings.Builder
	fmt.Fprintf(&b, "-A %s", chain)

	if r.Spec.Protocol != "" {
		fmt.Fprintf(&b, " -p %s", r.Spec.Protocol)
	}

	switch r.Spec.Direction {
	case v1alpha1.FirewallDirectionInbound:
		if r.Spec.SourceCIDR != "" {
			fmt.Fprintf(&b, " -s %s", r.Spec.SourceCIDR)
		}
	case v1alpha1.FirewallDirectionOutbound:
		if r.Spec.DestCIDR != "" {
			fmt.Fprintf(&b, " -d %s", r.Spec.DestCIDR)
		}
	}

	if r.Spec.Protocol == v1alpha1.FirewallProtocolTCP || r.Spec.Protocol == v1alpha1.FirewallProtocolUDP {
		if r.Spec.PortMin > 0 {
			if r.Spec.PortMax > 0 && r.Spec.PortMax != r.Spec.PortMin {
				fmt.Fprintf(&b, " --dport %d:%d", r.Spec.PortMin, r.Spec.PortMax)
			} else {
				fmt.Fprintf(&b, " --dport %d", r.Spec.PortMin)
			}
		}
	}

	fmt.Fprintf(&b, " -j ACCEPT")
	return b.String()
}
