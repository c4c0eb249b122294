package transport

import "fmt"

func errNotConnected(peerID int) error {
	return fmt.Errorf("mato: peer %d is not connected", peerID)
}

func errUnknownPeer(peerID int) error {
	return fmt.Errorf("mato: unknown peer %d", peerID)
}
