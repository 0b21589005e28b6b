package fingerprint

import (
	"context"
	"net"
	"strconv"

	"github.com/emo-crab/observer-ward-sub000/internal/engine/cluster"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/probe"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/template"
)

// runTCP executes the TCP flow: the default banner-grab probe (if any
// template needs it) followed by every other named TCP cluster, each
// dialed against host on the target's own port. A named cluster whose
// port range is non-empty and does not contain that port is skipped.
func (s *Scanner) runTCP(ctx context.Context, host string, port int, clusters *cluster.Type) (map[string]*MatchedResult, error) {
	results := make(map[string]*MatchedResult)

	if clusters.TCPDefault != nil {
		if err := s.runTCPCluster(ctx, host, port, clusters.TCPDefault, results); err != nil {
			return nil, err
		}
	}

	for name, execute := range clusters.TCPOther {
		targetPort := port
		if pr := clusters.PortRange[name]; pr != nil && !pr.IsEmpty() && !pr.Contains(port) {
			continue
		}
		if err := s.runTCPCluster(ctx, host, targetPort, execute, results); err != nil {
			continue
		}
	}

	return results, nil
}

func (s *Scanner) runTCPCluster(ctx context.Context, host string, port int, execute *cluster.Execute, results map[string]*MatchedResult) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	key := "tcp://" + addr

	for reqIdx, req := range execute.Requests.TCP {
		resp, err := probe.TCP(ctx, addr, req, s.options.Timeout)
		if err != nil {
			return err
		}

		result := resultFor(results, key)
		for _, op := range execute.Operators {
			if reqIdx >= len(op.Operators) {
				continue
			}
			opSet := op.Operators[reqIdx]
			event := NewMatchEvent(key, nil)
			opResult := template.NewOperatorResult()
			template.Match(opSet, resp, nil, nil, opResult)
			version, _ := op.Info.GetVersion()
			template.Extract(opSet, &version, resp, opResult)
			event.Push(op.TemplateID, op.Info, opResult)
			result.Fold(event, "", 0)
		}
	}
	return nil
}
