package model

// CertificationMatrix records which crews are certified on which aircraft.
// Pairs absent from the matrix are not certified.
type CertificationMatrix map[string]map[string]bool

// Allowed reports whether crewID may operate aircraftID.
func (m CertificationMatrix) Allowed(aircraftID, crewID string) bool {
	row, ok := m[aircraftID]
	if !ok {
		return false
	}
	return row[crewID]
}

// Set records a certification entry.
func (m CertificationMatrix) Set(aircraftID, crewID string, allowed bool) {
	row, ok := m[aircraftID]
	if !ok {
		row = make(map[string]bool)
		m[aircraftID] = row
	}
	row[crewID] = allowed
}

// GatewayMatrix records which aircraft may use which gateways.
// Pairs absent from the matrix count as incompatible.
type GatewayMatrix map[string]map[string]bool

// Compatible reports whether aircraftID can operate at gateway.
func (m GatewayMatrix) Compatible(aircraftID, gateway string) bool {
	row, ok := m[aircraftID]
	if !ok {
		return false
	}
	return row[gateway]
}

// Set records a compatibility entry.
func (m GatewayMatrix) Set(aircraftID, gateway string, ok bool) {
	row, exists := m[aircraftID]
	if !exists {
		row = make(map[string]bool)
		m[aircraftID] = row
	}
	row[gateway] = ok
}

func cloneMatrix(src map[string]map[string]bool) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(src))
	for k, row := range src {
		cp := make(map[string]bool, len(row))
		for kk, v := range row {
			cp[kk] = v
		}
		out[k] = cp
	}
	return out
}
