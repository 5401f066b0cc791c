// Package loader 实现动态类加载（DynamicClassLoader）
//
// 解析顺序：
//
//  1. 已注册的扩展：名称等于模块名且版本满足请求范围的扩展中取最高版本，
//     延迟导出（Thunk）只求值一次，并发调用合并
//  2. 远程模块：按 URL 模板替换 {package} 与 {version} 后通过 HTTP 获取
//     JSON 清单 {"name", "version", "exports": {类名: {"defaults", "view"}}}
//
// 相同 (module, version) 的远程获取共享一次在途请求；调用方 ctx 结束时
// 只有该调用方返回，获取继续进行并缓存结果。失败由并发调用方共享但不缓存。
//
// 版本范围支持 "*"、精确版本、"^x.y.z"、"~x.y.z" 与 ">=x.y.z"。
package loader

import "github.com/dep2p/go-widgetsync/pkg/lib/log"

var logger = log.Logger("core/loader")
