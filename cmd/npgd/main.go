package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/npg.go/pkg/device"
	fx "github.com/robotalks/npg.go/pkg/framework"
)

func init() {
	device.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	dev := device.Default().MustNewDevice()
	layout := dev.Config.Layout
	glog.Infof("device %s on %s: %d channels, %d samples/packet, %d bytes/packet",
		dev.Config.ID, dev.Config.LinkURL, layout.DataChannels, layout.SamplesPerPacket, layout.PacketSize())

	if err := fx.NewRunner().HandleSignals().Go(dev.Runnables()...).Wait(); err != nil {
		glog.Fatalf("device stopped: %v", err)
	}
}
