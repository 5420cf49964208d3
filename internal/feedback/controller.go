package feedback

import (
	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/display"
	"github.com/ayusman/mudra/internal/log"
)

// Controller receives detection side effects and renders them with the
// available assets. Missing sounds and images are silently skipped.
type Controller struct {
	assets  *Assets
	player  Player
	surface display.Surface
	logger  logrus.FieldLogger
}

// NewController wires assets, player and surface together. player and
// surface may be nil.
func NewController(assets *Assets, player Player, surface display.Surface, logger logrus.FieldLogger) *Controller {
	if logger == nil {
		logger = log.Discard()
	}
	if surface == nil {
		surface = display.NewMulti()
	}
	return &Controller{
		assets:  assets,
		player:  player,
		surface: surface,
		logger:  logger,
	}
}

// PlaySound plays the sound named after class, if there is one.
func (c *Controller) PlaySound(class string) {
	if c.player == nil || c.assets == nil {
		return
	}
	path, ok := c.assets.Sound(class)
	if !ok {
		c.logger.WithField("class", class).Debug("No sound for class")
		return
	}
	if err := c.player.Play(path); err != nil {
		c.logger.WithError(err).WithField("class", class).Warn("Could not play sound")
	}
}

// ShowImage shows the image called name. Without an image file the surface
// still learns the name, with an empty URL.
func (c *Controller) ShowImage(name string) {
	img := display.Image{Name: name}
	if c.assets != nil {
		if u, err := c.assets.ImageURL(name); err == nil {
			img.URL = u
		} else {
			c.logger.WithField("image", name).Debug("No image file")
		}
	}
	c.surface.SetImage(img)
}

// SetStatus forwards the status text.
func (c *Controller) SetStatus(text string) {
	c.surface.SetStatus(text)
}
