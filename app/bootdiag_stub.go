//go:build !(tinygo && bootdebug)

package app

import "ledmcu/hal"

func bootDiagSetStep(string)  {}
func bootDiagStart(h hal.HAL) {}
