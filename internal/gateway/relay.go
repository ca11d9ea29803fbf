package gateway

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hacksphere/esp32-gateway/internal/constants"
	"github.com/hacksphere/esp32-gateway/internal/models"
)

// Relay forwards client-issued device commands to the device connection.
// Relay is fire-and-forget: the requester is acknowledged that the command
// was sent, and no later device response is correlated back.
type Relay struct {
	Registry *Registry
	Logger   zerolog.Logger
}

// NewRelay initializes a new command relay.
func NewRelay(registry *Registry, logger zerolog.Logger) *Relay {
	return &Relay{
		Registry: registry,
		Logger:   logger.With().Str("component", "relay").Logger(),
	}
}

// Relay forwards one control message from a client to the device. When no
// device is connected the requester gets an error reply and nothing is sent
// device-side.
func (r *Relay) Relay(client *Client, msg models.ControlMessage) {
	if !r.Registry.DeviceConnected() {
		r.Registry.SendToClient(client.Identity(), models.ErrorMessage{
			Type:      constants.TypeError,
			Message:   "ESP32 device is not connected",
			Timestamp: time.Now(),
		})
		return
	}

	command := models.CommandMessage{
		Type:        constants.TypeCommand,
		ID:          uuid.NewString(),
		Command:     msg.Command,
		Params:      msg.Params,
		RequestedBy: client.Identity(),
		Timestamp:   time.Now(),
	}

	if !r.Registry.SendToDevice(command) {
		r.Registry.SendToClient(client.Identity(), models.ErrorMessage{
			Type:      constants.TypeError,
			Message:   "Failed to deliver command to device",
			Timestamp: time.Now(),
		})
		return
	}

	if r.Registry.metrics != nil {
		r.Registry.metrics.commandsRelayed.Inc()
	}
	r.Logger.Info().Str("command_id", command.ID).Str("user_id", client.Identity()).Str("command", msg.Command).Msg("Command relayed to device")

	r.Registry.SendToClient(client.Identity(), models.CommandSentMessage{
		Type:      constants.TypeCommandSent,
		CommandID: command.ID,
		Timestamp: time.Now(),
	})
}
