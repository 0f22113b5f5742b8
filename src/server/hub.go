package server

import (
	"encoding/json"
	"net/http"

	"volatility-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *FastAPIServer) handleWebsockets() {
	for {
		select {
		case <-s.done:
			for client := range s.clients {
				delete(s.clients, client)
				close(client.send)
			}
			s.clientCount.Store(0)
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.clientCount.Store(int32(len(s.clients)))
			s.Logger.Debug("Client %s connected", client.id)

			// Send initial state on connect
			client.send <- s.stateFor(nil, "INITIAL")

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
				s.clientCount.Store(int32(len(s.clients)))
			}

		case message := <-s.broadcast:
			for client := range s.clients {
				select {
				case client.send <- filterState(message, client.Currencies()):
				default:
					// Client too slow, disconnect to prevent Hub blocking
					delete(s.clients, client)
					close(client.send)
				}
			}
			s.clientCount.Store(int32(len(s.clients)))
		}
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// UpdateState merges snapshots into the cached state. Currencies missing from
// data keep their previous snapshot.
func (s *FastAPIServer) UpdateState(data *models.MLatestData) {
	if data == nil {
		return
	}

	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	if s.latestState.Snapshots == nil {
		s.latestState.Snapshots = make(map[string]models.MVolatilitySnapshot)
	}
	for cur, snap := range data.Snapshots {
		s.latestState.Snapshots[cur] = snap
	}

	s.latestState.Timestamp = data.Timestamp
	s.latestState.ProcessingMetrics = data.ProcessingMetrics
	s.latestState.Type = "UPDATE"
}

// -----------------------------------------------------------------------------

// Broadcast queues an update for every connected client.
func (s *FastAPIServer) Broadcast(data *models.MLatestData) {
	if data == nil {
		return
	}

	msg := filterState(data, nil)
	msg.Type = "UPDATE"

	select {
	case s.broadcast <- msg:
	case <-s.done:
	}
}

// -----------------------------------------------------------------------------
// Helper Methods
// -----------------------------------------------------------------------------

// stateFor returns a copy of the cached state limited to currencies.
func (s *FastAPIServer) stateFor(currencies []string, msgType string) *models.MLatestData {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	out := filterState(s.latestState, currencies)
	out.Type = msgType
	return out
}

// -----------------------------------------------------------------------------

func filterState(state *models.MLatestData, currencies []string) *models.MLatestData {
	return &models.MLatestData{
		Type:              state.Type,
		Snapshots:         filterSnapshots(state.Snapshots, currencies),
		Timestamp:         state.Timestamp,
		ProcessingMetrics: state.ProcessingMetrics,
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan *models.MLatestData, 256),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage applies a subscribe command and answers with the
// matching part of the cached state.
func (s *FastAPIServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	currencies := make([]string, 0, len(cmd.Currencies))
	for _, cur := range cmd.Currencies {
		currencies = append(currencies, normalizeCurrency(cur))
	}
	client.SetCurrencies(currencies)

	// The hub may already have dropped this client
	defer func() { _ = recover() }()
	select {
	case client.send <- s.stateFor(currencies, "INITIAL"):
	default:
		s.Logger.Debug("Client %s send buffer full, subscribe reply dropped", client.id)
	}
}
