// Package service starts the local database engine and confirms it accepts
// connections.
//
// Supervisor.Start creates the data directory and spawns the engine with
// "--port <port> --dbpath <dir>", returning as soon as the process exists. An
// exit that was not requested through Stop is reported to the caller's exit
// callback. Supervisor.Verify dials the service through a Prober (a MongoDB
// ping by default, a bare TCP dial as a fallback) with bounded retries.
package service
