package watermark

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// 24pt 红色, 30% 不透明, 逆时针旋转 30 度, 页面居中
const pdfStampDesc = "fontname:Helvetica, points:24, fillcolor:#FF0000, opacity:0.3, rotation:-30, scalefactor:1 abs, position:c, aligntext:center"

func init() {
	// 不读写用户目录下的 pdfcpu 配置
	api.DisableConfigDir()
}

func newPDFConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PDF 在每一页叠加两行水印
func PDF(src []byte, stamp Stamp) ([]byte, error) {
	first, second := stamp.Lines()
	wm, err := api.TextWatermark(first+"\n"+second, pdfStampDesc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("parse pdf stamp: %w", err)
	}
	var out bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(src), &out, nil, wm, newPDFConfig()); err != nil {
		return nil, fmt.Errorf("watermark pdf: %w", err)
	}
	return out.Bytes(), nil
}

// HasStamp 报告 PDF 是否已带水印
func HasStamp(data []byte) (bool, error) {
	return api.HasWatermarks(bytes.NewReader(data), newPDFConfig())
}

// PageCount 返回 PDF 页数
func PageCount(data []byte) (int, error) {
	return api.PageCount(bytes.NewReader(data), newPDFConfig())
}
