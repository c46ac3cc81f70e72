package connectivity

import "testing"

func TestMonitorEdgeDetection(t *testing.T) {
	m := NewMonitor()

	var restored, lost int
	var typeChanges [][2]string
	m.OnNetworkRestored(func() { restored++ })
	m.OnNetworkLost(func() { lost++ })
	m.OnConnectionTypeChanged(func(from, to string) {
		typeChanges = append(typeChanges, [2]string{from, to})
	})

	m.Update(PathStatus{Connected: true, InterfaceType: "wifi"})
	if restored != 0 || lost != 0 {
		t.Fatalf("baseline observation fired events: restored=%d lost=%d", restored, lost)
	}

	m.Update(PathStatus{Connected: false})
	if lost != 1 {
		t.Errorf("lost = %d, want 1", lost)
	}

	m.Update(PathStatus{Connected: true, InterfaceType: "wifi"})
	if restored != 1 {
		t.Errorf("restored = %d, want 1", restored)
	}

	m.Update(PathStatus{Connected: true, InterfaceType: "ethernet"})
	if len(typeChanges) != 1 || typeChanges[0] != [2]string{"wifi", "ethernet"} {
		t.Errorf("typeChanges = %v", typeChanges)
	}

	// Same type again, no event.
	m.Update(PathStatus{Connected: true, InterfaceType: "ethernet"})
	if restored != 1 || lost != 1 || len(typeChanges) != 1 {
		t.Errorf("unexpected extra events: restored=%d lost=%d typeChanges=%v", restored, lost, typeChanges)
	}
}

func TestMonitorAssumesConnectedBeforeFirstObservation(t *testing.T) {
	m := NewMonitor()
	if !m.IsConnected() {
		t.Error("monitor should assume connected before observations arrive")
	}

	m.Update(PathStatus{Connected: false})
	if m.IsConnected() {
		t.Error("monitor should report disconnected after observation")
	}
}

func TestMonitorDisconnectedBaselineFiresLost(t *testing.T) {
	m := NewMonitor()
	var lost int
	m.OnNetworkLost(func() { lost++ })

	m.Update(PathStatus{Connected: false})
	if lost != 1 {
		t.Errorf("lost = %d, want 1 for disconnected baseline", lost)
	}
}
