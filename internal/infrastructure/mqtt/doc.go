// Package mqtt connects HomySync to a local MQTT broker.
//
// The broker is an optional side channel: the reconciled device state is
// mirrored there as retained messages, door alerts are forwarded, and
// home-automation tools may publish toggle commands back. Nothing in the
// sync path depends on the broker being reachable.
//
// # Topics
//
//	{prefix}/state/lights        retained
//	{prefix}/state/door          retained
//	{prefix}/state/clothesline   retained
//	{prefix}/alert               not retained
//	{prefix}/command/{target}    inbound toggles
//	{prefix}/status              online/offline, Last Will
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Publish(client.Topics().State("door"), payload, client.QoS(), true)
//
// The mirror is the only publisher. It keeps the latest payload per state
// topic and calls Publish from one worker, so a slow broker delays state
// but never reorders or loses the newest value. Close is idempotent.
package mqtt
