// Package asset provides the lifecycle state machine shared by every asset
// driver.
//
//	IDLE → STARTING → RUNNING → STOPPING → IDLE
//	any  → FAULT → (reset) → IDLE
//
// Drivers compose a Machine and supply their behaviour through Hooks.
package asset
