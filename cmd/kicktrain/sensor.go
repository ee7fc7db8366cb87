package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/kicktrain/internal/model"
	"github.com/verte-zerg/kicktrain/internal/sensor"
)

var (
	sendBroker  string
	sendTopic   string
	sendSegment int
	sendMiss    bool
	sendGoal    bool
)

func newSensorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sensor",
		Short: "Sensor bridge tools",
	}
	send := &cobra.Command{
		Use:   "send",
		Short: "Publish a shot, miss or goal event to the sensor topic",
		Args:  cobra.NoArgs,
		RunE:  runSensorSendCmd,
	}
	send.Flags().StringVar(&sendBroker, "mqtt-broker", "tcp://localhost:1883", "MQTT broker")
	send.Flags().StringVar(&sendTopic, "mqtt-topic", defaultSensorTopic, "MQTT topic")
	send.Flags().IntVar(&sendSegment, "segment", 0, "segment hit by the shot (1-5)")
	send.Flags().BoolVar(&sendMiss, "miss", false, "send a miss")
	send.Flags().BoolVar(&sendGoal, "goal", false, "send a goal without segment")
	cmd.AddCommand(send)
	return cmd
}

func sensorEventFromFlags() (sensor.Event, error) {
	set := 0
	if sendSegment != 0 {
		set++
	}
	if sendMiss {
		set++
	}
	if sendGoal {
		set++
	}
	if set != 1 {
		return sensor.Event{}, fmt.Errorf("exactly one of --segment, --miss or --goal is required")
	}
	switch {
	case sendMiss:
		return sensor.Event{Kind: sensor.KindMiss}, nil
	case sendGoal:
		return sensor.Event{Kind: sensor.KindGoal}, nil
	}
	seg, err := model.ParseSegment(sendSegment)
	if err != nil {
		return sensor.Event{}, fmt.Errorf("invalid --segment: %w", err)
	}
	return sensor.Event{Kind: sensor.KindShot, Segment: seg}, nil
}

func runSensorSendCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "mqtt-broker", &sendBroker, fileCfg.Sensor.Broker)
	applyStringConfig(cmd, "mqtt-topic", &sendTopic, fileCfg.Sensor.Topic)
	ev, err := sensorEventFromFlags()
	if err != nil {
		return err
	}
	client, err := sensor.Dial(sensor.Options{Broker: sendBroker, ClientID: defaultSensorClientID + "-send"})
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	if err := sensor.Publish(client, sendTopic, ev); err != nil {
		return err
	}
	return writeOut(cmd.OutOrStdout(), "Sent %s event to %s\n", ev.Kind, sendTopic)
}
