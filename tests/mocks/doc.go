// Package mocks 提供统一的测试 Mock 实现
//
// # Mock 列表
//
//   - MockRenderHost: 模拟 interfaces.RenderHost，记录挂载并可触发视图移除
//   - MockResolver: 模拟 interfaces.ClassResolver，按描述符返回类或错误
//   - MockManager: 模拟 interfaces.Manager，记录 Rekey / Flush / Dispose 调用
//
// 每个 Mock 都提供可覆盖的 XxxFunc 字段与调用记录。
package mocks
