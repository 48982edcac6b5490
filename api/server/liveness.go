// liveness.go - Liveness probe logic for the vault node
package server

// NodeLiveness reports whether the vault answers status queries.
func (s *Server) NodeLiveness() bool {
	return s.vault != nil
}
