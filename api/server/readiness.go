// readiness.go - Readiness probe logic for the vault node
package server

// NodeReadiness is true when the vault can take writes: enough disk and an
// intact audit chain. The ledger is optional and does not affect readiness.
func (s *Server) NodeReadiness() bool {
	m := s.GetNodeMetrics()
	return m.AuditChainOK && s.diskOK(m)
}
