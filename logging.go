package ada

import (
	"log"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/golog"
)

func (d *Device) WithGoLogger(parentLogger *log.Logger) {
	d.WithLogWrapLogger(logwrap.New(golog.Wrap(parentLogger)))
}

func (d *Device) WithLogWrapLogger(lw logwrap.Logger) {
	lw.AddOptionsToLogger(logwrap.Datum("device", d.name))
	d.logger = lw
}
