/*
 * namdplot.go, part of goNAMD.
 *
 * Copyright 2024 Raul Mera <rmera{at}usach(dot)cl>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

//Package namdplot produces plots for trajectories and ensembles, using gonum/plot.
//The format of the output is given by the extension of the file name (png, svg, pdf...).
package namdplot

import (
	"fmt"
	"image/color"
	"math"

	"github.com/rmera/namd"
	"github.com/rmera/namd/dyn"
	"github.com/rmera/namd/ensemble"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

//Size of the plots.
var (
	Width  = 6 * vg.Inch
	Height = 4 * vg.Inch
)

func basicPlot(title, xlabel, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Padding = 3 * vg.Millimeter
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	return p
}

func addLine(p *plot.Plot, xy plotter.XYs, label string, key, steps int) error {
	l, err := plotter.NewLine(xy)
	if err != nil {
		return err
	}
	r, g, b := colors(key, steps)
	l.LineStyle.Color = color.RGBA{R: r, G: g, B: b, A: 255}
	l.LineStyle.Width = vg.Points(1.5)
	p.Add(l)
	p.Legend.Add(label, l)
	return nil
}

//Energies plots the potential energy of the populated state, the kinetic energy and the total energy
//of a trajectory, in eV, against the time, in fs. dt is the time step, in atomic units.
func Energies(h *dyn.History, dt float64, title, plotname string) error {
	if h == nil || h.Len() == 0 {
		return fmt.Errorf("namdplot.Energies: empty history")
	}
	data := [3]plotter.XYs{make(plotter.XYs, h.Len()), make(plotter.XYs, h.Len()), make(plotter.XYs, h.Len())}
	for i, f := range h.Frames() {
		t := float64(f.Iteration) * dt * namd.AU2FS
		for j, e := range []float64{f.Energy, f.Kinetic, f.Total()} {
			data[j][i].X = t
			data[j][i].Y = e * namd.H2EV
		}
	}
	p := basicPlot(title, "Time (fs)", "Energy (eV)")
	for j, label := range []string{"Potential", "Kinetic", "Total"} {
		if err := addLine(p, data[j], label, j, len(data)); err != nil {
			return fmt.Errorf("namdplot.Energies: %w", err)
		}
	}
	return p.Save(Width, Height, plotname)
}

//Populations plots the fraction of the running trajectories of an ensemble in each state against the time, in fs.
func Populations(s *ensemble.Summary, title, plotname string) error {
	pops := s.Populations()
	if len(pops) == 0 {
		return fmt.Errorf("namdplot.Populations: no data")
	}
	p := basicPlot(title, "Time (fs)", "Population")
	p.Y.Min = 0
	p.Y.Max = 1
	for st, label := range s.States {
		xy := make(plotter.XYs, len(pops))
		for i, v := range pops {
			xy[i].X = float64(i) * s.DeltaT
			xy[i].Y = v[st]
		}
		if err := addLine(p, xy, label, st, len(s.States)); err != nil {
			return fmt.Errorf("namdplot.Populations: %w", err)
		}
	}
	return p.Save(Width, Height, plotname)
}

//colors returns the key-th of steps colors evenly spread over the hue circle, skipping the greens.
func colors(key, steps int) (r, g, b uint8) {
	if steps < 1 {
		steps = 1
	}
	hp := float64(key)*260.0/float64(steps) + 20.0
	h := hp + 20
	if hp < 55 {
		h = hp - 20
	}
	return hsv2RGB(h, 1, 1)
}

//hsv2RGB converts a color with hue h (in degrees), saturation s and value v to RGB.
func hsv2RGB(h, s, v float64) (uint8, uint8, uint8) {
	if s == 0 {
		c := uint8(255 * v)
		return c, c, c
	}
	h = math.Mod(h, 360) / 60
	i := math.Floor(h)
	f := h - i
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))
	var rgb [3]float64
	switch int(i) {
	case 0:
		rgb = [3]float64{v, t, p}
	case 1:
		rgb = [3]float64{q, v, p}
	case 2:
		rgb = [3]float64{p, v, t}
	case 3:
		rgb = [3]float64{p, q, v}
	case 4:
		rgb = [3]float64{t, p, v}
	default:
		rgb = [3]float64{v, p, q}
	}
	return uint8(255 * rgb[0]), uint8(255 * rgb[1]), uint8(255 * rgb[2])
}
